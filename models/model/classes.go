// Package model - Class label sets.
package model

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/nvr-ai/go-cavity/common"
)

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int `json:"index" yaml:"index"`
	// The human-readable label.
	Name string `json:"name" yaml:"name"`
}

// ClassSet maps model class ids to labels.
type ClassSet struct {
	// Classes that are supported and mappable.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// CavityClasses is the label set of the two-class cavity model.
var CavityClasses = NewClassSet("cavity", "normal")

// NewClassSet builds a set from labels in class id order.
func NewClassSet(names ...string) *ClassSet {
	s := &ClassSet{Classes: make([]OutputClass, len(names))}
	for i, name := range names {
		s.Classes[i] = OutputClass{Index: i, Name: name}
	}
	s.BuildNameIndexMap()
	return s
}

// BuildNameIndexMap builds or rebuilds the name->index map.
//
// Exports may repeat a label under several ids; the lowest id wins.
func (s *ClassSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Classes))
	for _, c := range s.Classes {
		if _, ok := s.nameToIdx[c.Name]; !ok {
			s.nameToIdx[c.Name] = c.Index
		}
	}
}

// Len returns the number of classes.
func (s *ClassSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Classes)
}

// Names returns the labels in id order.
func (s *ClassSet) Names() []string {
	names := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		names[i] = c.Name
	}
	return names
}

// GetName returns the label for a class id, or "class_<id>" when unknown.
func (s *ClassSet) GetName(idx int) string {
	if s == nil || idx < 0 || idx >= len(s.Classes) {
		return fmt.Sprintf("class_%d", idx)
	}
	return s.Classes[idx].Name
}

// GetIndex returns the lowest class id carrying name.
func (s *ClassSet) GetIndex(name string) (int, error) {
	if s == nil {
		return -1, fmt.Errorf("name %q not found", name)
	}
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, fmt.Errorf("name %q not found", name)
	}
	return idx, nil
}

// LoadLabels reads a labels.txt file with one label per line.
//
// Blank lines and surrounding whitespace are ignored.
func LoadLabels(path string) (*ClassSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.E(common.KindInvalidConfig, "labels", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, common.E(common.KindInvalidConfig, "labels", err)
	}
	if len(names) == 0 {
		return nil, common.Errorf(common.KindInvalidConfig, "labels", "%s has no labels", path)
	}
	return NewClassSet(names...), nil
}
