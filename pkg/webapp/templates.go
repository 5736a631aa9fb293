package webapp

// indexTemplate is the upload form. Kept inline: it is the only page the
// application renders.
const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>PDF Math Converter</title>
  <style>
    body { font-family: sans-serif; max-width: 40em; margin: 3em auto; }
    .flash { background: #fffae6; border: 1px solid #e0d8a8; padding: 0.6em 1em; margin-bottom: 1em; }
    label { display: block; margin-top: 1em; }
  </style>
</head>
<body>
  <h1>PDF Math Converter</h1>
  <p>Upload a scanned PDF. The converter overlays the extracted text and any
  recognized formula onto each page.</p>
  {{range .Flashes}}<div class="flash">{{.}}</div>{{end}}
  <form action="/upload" method="post" enctype="multipart/form-data">
    <label>PDF document
      <input type="file" name="pdf" accept=".pdf" required>
    </label>
    <label>Font file (optional, TTF)
      <input type="file" name="font" accept=".ttf">
    </label>
    <p><button type="submit">Convert</button></p>
  </form>
</body>
</html>
`
