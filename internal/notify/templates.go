package notify

import (
	"bytes"
	"fmt"
	htmltpl "html/template"
	"strings"
	texttpl "text/template"
)

type tplData struct {
	Name string
	URL  string
}

type mailTemplate struct {
	text *texttpl.Template
	html *htmltpl.Template
}

var welcomeTpl = mailTemplate{
	text: texttpl.Must(texttpl.New("welcome").Parse(
		"Hi {{.Name}},\n\nWelcome to EasyRent! You can now list your property or find your next home.\n")),
	html: htmltpl.Must(htmltpl.New("welcome").Parse(
		`<p>Hi {{.Name}},</p><p>Welcome to <b>EasyRent</b>! You can now list your property or find your next home.</p>`)),
}

var resetTpl = mailTemplate{
	text: texttpl.Must(texttpl.New("reset").Parse(
		"Hi {{.Name}},\n\nForgot your password? Submit a PATCH request with your new password and confirmPassword to: {{.URL}}\n" +
			"If you didn't forget your password, please ignore this email!\n")),
	html: htmltpl.Must(htmltpl.New("reset").Parse(
		`<p>Hi {{.Name}},</p><p>Forgot your password? Submit a PATCH request with your new password and confirmPassword to:</p>` +
			`<p><a href="{{.URL}}">{{.URL}}</a></p><p>If you didn't forget your password, please ignore this email!</p>`)),
}

func render(t mailTemplate, from, to, subject string, data tplData) (Message, error) {
	var text, html bytes.Buffer
	if err := t.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", t.text.Name(), err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", t.html.Name(), err)
	}
	return Message{From: from, To: to, Subject: subject, Text: text.String(), HTML: html.String()}, nil
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return "there"
}
