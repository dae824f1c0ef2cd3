package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
)

// UnknownLabel is reported for indices no mapping knows about.
const UnknownLabel = "Unknown"

// defaultLabels is used when no class mapping file is deployed, and to back
// indices missing from a damaged one.
var defaultLabels = []string{
	"healthy",
	"early_blight",
	"late_blight",
	"leaf_mold",
	"septoria_leaf_spot",
	"spider_mites",
	"target_spot",
	"yellow_leaf_curl_virus",
	"mosaic_virus",
	"powdery_mildew",
	"downy_mildew",
	"bacterial_spot",
	"bacterial_wilt",
	"fusarium_wilt",
}

// ClassMapping maps classifier output indices to disease identifiers.
type ClassMapping struct {
	labels map[int]string
	size   int
}

// DefaultMapping returns the built-in 14 class mapping.
func DefaultMapping() *ClassMapping {
	m, _ := NewClassMapping(defaultLabels)
	return m
}

// NewClassMapping builds a contiguous mapping where labels[i] is class i.
func NewClassMapping(labels []string) (*ClassMapping, error) {
	if len(labels) == 0 {
		return nil, errors.New("class mapping is empty")
	}
	m := &ClassMapping{labels: make(map[int]string, len(labels)), size: len(labels)}
	for i, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fmt.Errorf("class %d has an empty label", i)
		}
		m.labels[i] = label
	}
	return m, nil
}

// ParseClassMapping reads either a JSON array of labels or an object keyed by
// the decimal class index ({"0": "healthy", ...}).
func ParseClassMapping(data []byte) (*ClassMapping, error) {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return NewClassMapping(list)
	}

	var byIndex map[string]string
	if err := json.Unmarshal(data, &byIndex); err != nil {
		return nil, fmt.Errorf("failed to parse class mapping: %w", err)
	}
	if len(byIndex) == 0 {
		return nil, errors.New("class mapping is empty")
	}

	m := &ClassMapping{labels: make(map[int]string, len(byIndex))}
	for key, label := range byIndex {
		idx, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid class index %q", key)
		}
		m.labels[idx] = strings.TrimSpace(label)
		if idx+1 > m.size {
			m.size = idx + 1
		}
	}
	return m, nil
}

// LoadClassMapping reads the mapping file at path. A missing file is not an
// error: the default mapping is returned with usedDefault set.
func LoadClassMapping(path string) (m *ClassMapping, usedDefault bool, err error) {
	if strings.TrimSpace(path) == "" {
		return DefaultMapping(), true, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultMapping(), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read class mapping: %w", err)
	}
	m, err = ParseClassMapping(data)
	if err != nil {
		return nil, false, err
	}
	return m, false, nil
}

// Label resolves idx. Indices absent from the mapping fall back to the
// default mapping, then to UnknownLabel; Label never fails.
func (m *ClassMapping) Label(idx int) string {
	if m != nil {
		if label, ok := m.labels[idx]; ok && label != "" {
			return label
		}
	}
	if idx >= 0 && idx < len(defaultLabels) {
		return defaultLabels[idx]
	}
	return UnknownLabel
}

// Len is one past the highest mapped index.
func (m *ClassMapping) Len() int {
	return m.size
}

// Missing lists indices below Len with no label.
func (m *ClassMapping) Missing() []int {
	var gaps []int
	for i := 0; i < m.size; i++ {
		if m.labels[i] == "" {
			gaps = append(gaps, i)
		}
	}
	sort.Ints(gaps)
	return gaps
}

// Labels returns the labels in index order, resolving gaps through Label.
func (m *ClassMapping) Labels() []string {
	out := make([]string, m.size)
	for i := range out {
		out[i] = m.Label(i)
	}
	return out
}
