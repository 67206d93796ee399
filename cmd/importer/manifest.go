package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"offer_console/internal/domain"
	"offer_console/internal/media"
)

// entry is one offer of an import manifest. Image paths are relative to
// the manifest file.
type entry struct {
	Content   map[domain.Lang]domain.LocalizedText `json:"content"`
	Stars     int                                  `json:"stars"`
	Duration  looseString                          `json:"duration"`
	MainImage string                               `json:"mainImage"`
	Images    []string                             `json:"images"`
}

// looseString accepts 7 as well as "7".
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*s = looseString(n.String())
	return nil
}

type manifest struct {
	dir     string
	entries []entry
}

func readManifest(path string) (manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, err
	}
	var entries []entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return manifest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return manifest{dir: filepath.Dir(path), entries: entries}, nil
}

func (e entry) draft() domain.Draft {
	d := domain.NewDraft()
	for l, t := range e.Content {
		d.Content[l] = t
	}
	d.Stars = e.Stars
	d.Duration = string(e.Duration)
	return d
}

// label names an entry in logs by its English title, else its position.
func (e entry) label(i int) string {
	if t := e.Content[domain.LangEN].Title; t != "" {
		return t
	}
	return "#" + strconv.Itoa(i+1)
}

func (m manifest) files(e entry) (*media.File, []media.File, error) {
	var main *media.File
	if e.MainImage != "" {
		f, err := media.OpenPath(m.resolve(e.MainImage))
		if err != nil {
			return nil, nil, err
		}
		main = &f
	}
	gallery := make([]media.File, 0, len(e.Images))
	for _, p := range e.Images {
		f, err := media.OpenPath(m.resolve(p))
		if err != nil {
			return nil, nil, err
		}
		gallery = append(gallery, f)
	}
	return main, gallery, nil
}

func (m manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.dir, p)
}
