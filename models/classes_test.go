package models

import (
	"testing"

	"github.com/nvr-ai/cacao-scan/models/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassManager(t *testing.T) {
	mgr := NewClassManager(CacaoClasses, YOLOClasses)

	name, err := mgr.GetName(model.ModelFamilyCacao, 1)
	require.NoError(t, err)
	assert.Equal(t, "Monilia", name)

	idx, err := mgr.GetIndex(model.ModelFamilyYOLO, "person")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = mgr.GetName(model.ModelFamilyCacao, 3)
	assert.Error(t, err)
	_, err = mgr.GetIndex(model.ModelFamilyCacao, "person")
	assert.Error(t, err)
	_, err = mgr.GetName("voc", 0)
	assert.Error(t, err)

	_, err = mgr.MapClass(model.ModelFamilyCacao, 0, model.ModelFamilyYOLO)
	assert.Error(t, err)
}

func TestClassSets(t *testing.T) {
	assert.Equal(t, []string{"Fitoftora", "Monilia", "Sana"}, CacaoClasses.Names())
	assert.Len(t, YOLOClasses.Classes, 80)
	assert.Equal(t, "toothbrush", YOLOClasses.Classes[79].Name)

	names, err := ClassNamesFor("")
	require.NoError(t, err)
	assert.Equal(t, CacaoClasses.Names(), names)
}
