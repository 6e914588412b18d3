// Package render fills notification templates. Placeholders are written as
// {name}; every placeholder must be supplied by the render context.
package render

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/valyala/fasttemplate"
)

const (
	startTag = "{"
	endTag   = "}"
)

type Rendered struct {
	Title string
	Body  string
}

// Render substitutes vars into the template's title and body. Inactive
// templates, malformed placeholders and missing variables are all ErrTemplate.
func Render(t domain.Template, vars map[string]any) (Rendered, error) {
	if !t.Active {
		return Rendered{}, fmt.Errorf("%w: template %q is inactive", domain.ErrTemplate, t.Key)
	}

	missing := missingFields(t, vars)
	if len(missing) > 0 {
		return Rendered{}, fmt.Errorf("%w: template %q missing fields: %s", domain.ErrTemplate, t.Key, strings.Join(missing, ", "))
	}

	title, err := execute(t.Title, vars)
	if err != nil {
		return Rendered{}, fmt.Errorf("%w: template %q title: %v", domain.ErrTemplate, t.Key, err)
	}
	body, err := execute(t.Body, vars)
	if err != nil {
		return Rendered{}, fmt.Errorf("%w: template %q body: %v", domain.ErrTemplate, t.Key, err)
	}

	return Rendered{Title: title, Body: body}, nil
}

// RequiredFields lists the distinct placeholder names of title and body in
// sorted order.
func RequiredFields(t domain.Template) ([]string, error) {
	seen := map[string]struct{}{}
	for _, src := range []string{t.Title, t.Body} {
		tags, err := tags(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTemplate, err)
		}
		for _, tag := range tags {
			seen[tag] = struct{}{}
		}
	}

	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields, nil
}

// Check validates placeholder syntax without rendering.
func Check(t domain.Template) error {
	fields, err := RequiredFields(t)
	if err != nil {
		return err
	}
	if slices.Contains(fields, "") {
		return fmt.Errorf("%w: empty placeholder {}", domain.ErrTemplate)
	}
	return nil
}

func missingFields(t domain.Template, vars map[string]any) []string {
	fields, err := RequiredFields(t)
	if err != nil {
		// Reported by execute with its own message.
		return nil
	}

	var missing []string
	for _, f := range fields {
		if v, ok := vars[f]; !ok || v == nil {
			missing = append(missing, f)
		}
	}
	return missing
}

func tags(src string) ([]string, error) {
	tpl, err := fasttemplate.NewTemplate(src, startTag, endTag)
	if err != nil {
		return nil, err
	}

	var out []string
	tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		out = append(out, strings.TrimSpace(tag))
		return 0, nil
	})
	return out, nil
}

func execute(src string, vars map[string]any) (string, error) {
	tpl, err := fasttemplate.NewTemplate(src, startTag, endTag)
	if err != nil {
		return "", err
	}

	return tpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		v, ok := vars[strings.TrimSpace(tag)]
		if !ok || v == nil {
			return 0, fmt.Errorf("missing field %q", tag)
		}
		return io.WriteString(w, fmt.Sprint(v))
	})
}
