// Package models - Class sets and the model registry.
package models

import "github.com/nvr-ai/cacao-scan/models/model"

// DefaultClassManager knows every built-in class set.
var DefaultClassManager = NewClassManager(CacaoClasses, YOLOClasses)

// ClassNamesFor returns the built-in class names of family. The cacao set is used when
// family is empty.
func ClassNamesFor(family model.Family) ([]string, error) {
	if family == "" {
		family = model.ModelFamilyCacao
	}
	set, err := DefaultClassManager.Set(family)
	if err != nil {
		return nil, err
	}
	return set.Names(), nil
}
