package handler

import (
	"embed"
	"html/template"
)

var (
	//go:embed template/*.html
	templateFS embed.FS

	// page shown after a landing form is posted
	submitResultTmpl = template.Must(template.ParseFS(templateFS, "template/submit_result.html"))
)
