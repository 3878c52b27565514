package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	texttmpl "text/template"

	appfs "github.com/eventuais/eventuais/fs"
)

var (
	templates       tmplCache
	frontendBaseURL string
	tmplMu          sync.RWMutex

	emailTemplatesDir = "templates/email"
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		BodyHTML    string // simple text/html, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) getContextData() ContextData {
	return ContextData{
		FrontendBaseURL: frontendBaseURL,
		Data:            m.TemplateData,
	}
}

func (m *EmailMessage) getTemplate(ext string) (interface{}, bool) {
	tmplMu.RLock()
	defer tmplMu.RUnlock()
	cache, ok := templates[m.TemplateName]
	if !ok {
		return nil, ok
	}
	tmplEntry, ok := cache[ext]
	return tmplEntry, ok
}

func (m *EmailMessage) renderText() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".txt")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, m.getContextData()); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML() error {
	if m.BodyHTML != "" {
		m.HTMLContent = m.BodyHTML
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".gohtml")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, m.getContextData()); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

func (m *EmailMessage) Render() error {
	if err := m.renderText(); err != nil {
		return err
	}
	return m.renderHTML()
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}

	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) AttachFile(path string, contentType ...string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Attach(f, filepath.Base(path), contentType...)
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// ParseEmailTemplates parses the embedded email templates. Files starting with "_" are base layouts.
func ParseEmailTemplates(logger Logger, conf *Config) {
	tmplMu.Lock()
	defer tmplMu.Unlock()

	templates = make(tmplCache)
	frontendBaseURL = conf.FrontendBaseURL
	strict := conf.Debug || conf.TestMode

	entries, err := fs.ReadDir(appfs.FS, emailTemplatesDir)
	if err != nil {
		logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
		return
	}

	for _, e := range entries {
		fname := e.Name()
		ext := path.Ext(fname)
		if e.IsDir() || strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := templates[name]
		if !ok {
			entry = make(tmplCacheEntry)
			templates[name] = entry
		}

		fp := path.Join(emailTemplatesDir, fname)
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(appfs.FS, path.Join(emailTemplatesDir, "_base.txt"), fp)
			if err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fname, err), err)
				continue
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(appfs.FS, path.Join(emailTemplatesDir, "_base.gohtml"), fp)
			if err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fname, err), err)
				continue
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		}
	}
}
