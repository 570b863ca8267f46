// Package model - Model identities, construction arguments and the Model interface.
package model

import (
	"github.com/nvr-ai/cacao-scan/models/model/preprocess"
	"github.com/nvr-ai/cacao-scan/models/postprocess"
)

// Family is the family of models, which also names their class set.
type Family string

const (
	// ModelFamilyCacao is the cacao pod disease detector family.
	ModelFamilyCacao Family = "cacao"
	// ModelFamilyYOLO is the 80-class COCO family as exported by Ultralytics.
	ModelFamilyYOLO Family = "yolo"
)

// Name is the unique identifier of a model architecture.
type Name string

const (
	// ModelNameYOLOv8 is an Ultralytics YOLOv8 detector.
	ModelNameYOLOv8 Name = "yolov8"
	// ModelNameYOLO11 is an Ultralytics YOLO11 detector.
	ModelNameYOLO11 Name = "yolo11"
	// ModelNameYOLO11OBB is an Ultralytics YOLO11 detector with oriented boxes.
	ModelNameYOLO11OBB Name = "yolo11-obb"
)

// BaseModel describes a constructed model.
type BaseModel struct {
	Name        Name     `json:"name" yaml:"name"`
	Family      Family   `json:"family" yaml:"family"`
	Path        string   `json:"path" yaml:"path"`
	ClassNames  []string `json:"class_names" yaml:"class_names"`
	InputWidth  int      `json:"input_width" yaml:"input_width"`
	InputHeight int      `json:"input_height" yaml:"input_height"`
	Inputs      []string `json:"inputs" yaml:"inputs"`
	Outputs     []string `json:"outputs" yaml:"outputs"`
	Oriented    bool     `json:"oriented" yaml:"oriented"`
}

// Model prepares inputs for and interprets outputs of one detection network.
type Model interface {
	Options() BaseModel
	PreProcess(img *preprocess.Image) (*preprocess.Result, error)
	PostProcess(raw postprocess.RawOutput, lb postprocess.Letterbox) ([]postprocess.Detection, error)
}

// NewModelArgs is the arguments for creating a new model.
//
// ClassNames overrides the family's class set. InputSize is the square network input side.
// ScoreFloor is the lowest class probability kept by the decoder.
type NewModelArgs struct {
	Name       Name                      `json:"name" yaml:"name"`
	Path       string                    `json:"path" yaml:"path"`
	Family     Family                    `json:"family" yaml:"family"`
	ClassNames []string                  `json:"class_names" yaml:"class_names"`
	InputSize  int                       `json:"input_size" yaml:"input_size"`
	ScoreFloor float32                   `json:"score_floor" yaml:"score_floor"`
	Encoding   postprocess.ScoreEncoding `json:"score_encoding" yaml:"score_encoding"`
	NMS        *postprocess.NMSConfig    `json:"nms" yaml:"nms"`
	TouchIoU   float64                   `json:"touch_iou" yaml:"touch_iou"`
	Inputs     []string                  `json:"inputs" yaml:"inputs"`
	Outputs    []string                  `json:"outputs" yaml:"outputs"`
}
