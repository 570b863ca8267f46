package models

import (
	"fmt"

	"github.com/nvr-ai/cacao-scan/models/model"
)

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// OutputClassSet ties a model family to its full list of labels.
type OutputClassSet struct {
	// Class set identifier.
	Family model.Family
	// Classes in model output order.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewOutputClassSet builds a set whose class indices follow the order of names.
func NewOutputClassSet(family model.Family, names ...string) *OutputClassSet {
	set := &OutputClassSet{Family: family, Classes: make([]OutputClass, len(names))}
	for i, name := range names {
		set.Classes[i] = OutputClass{Index: i, Name: name}
	}
	set.BuildNameIndexMap()
	return set
}

// BuildNameIndexMap builds or rebuilds the name->index map.
func (s *OutputClassSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Classes))
	for _, c := range s.Classes {
		s.nameToIdx[c.Name] = c.Index
	}
}

// Names returns the class names in index order.
func (s *OutputClassSet) Names() []string {
	names := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		names[i] = c.Name
	}
	return names
}

// ClassManager holds all registered class sets.
type ClassManager struct {
	sets map[model.Family]*OutputClassSet
}

// NewClassManager initializes and registers the given sets.
func NewClassManager(allSets ...*OutputClassSet) *ClassManager {
	mgr := &ClassManager{sets: make(map[model.Family]*OutputClassSet)}
	for _, set := range allSets {
		set.BuildNameIndexMap()
		mgr.sets[set.Family] = set
	}
	return mgr
}

// Set returns the class set registered for family.
func (m *ClassManager) Set(family model.Family) (*OutputClassSet, error) {
	set, ok := m.sets[family]
	if !ok {
		return nil, fmt.Errorf("family %q not registered", family)
	}
	return set, nil
}

// GetName returns the class name for a given family and index.
func (m *ClassManager) GetName(family model.Family, idx int) (string, error) {
	set, err := m.Set(family)
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(set.Classes) {
		return "", fmt.Errorf("index %d out of range for family %q", idx, family)
	}
	return set.Classes[idx].Name, nil
}

// GetIndex returns the class index for a given family and name.
func (m *ClassManager) GetIndex(family model.Family, name string) (int, error) {
	set, err := m.Set(family)
	if err != nil {
		return -1, err
	}
	idx, ok := set.nameToIdx[name]
	if !ok {
		return -1, fmt.Errorf("name %q not found in family %q", name, family)
	}
	return idx, nil
}

// MapClass maps an index from one family to another, returning the target OutputClass.
func (m *ClassManager) MapClass(from model.Family, idx int, to model.Family) (OutputClass, error) {
	name, err := m.GetName(from, idx)
	if err != nil {
		return OutputClass{}, err
	}
	toIdx, err := m.GetIndex(to, name)
	if err != nil {
		return OutputClass{}, err
	}
	return OutputClass{Index: toIdx, Name: name}, nil
}

// CacaoClasses is the cacao pod detector's label set in training order: black pod rot
// (Phytophthora), frosty pod rot (Moniliophthora) and healthy pods.
var CacaoClasses = NewOutputClassSet(model.ModelFamilyCacao, "Fitoftora", "Monilia", "Sana")

// YOLOClasses is the 80 COCO classes in Ultralytics order, without a background class.
var YOLOClasses = NewOutputClassSet(model.ModelFamilyYOLO,
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog",
	"horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich",
	"orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote",
	"keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
)
