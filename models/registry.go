package models

import (
	"fmt"

	"github.com/nvr-ai/cacao-scan/models/model"
	"github.com/nvr-ai/cacao-scan/models/yolo"
)

// NewModel creates a new detection model instance based on the specified model name.
//
// Class names default to the built-in set of args.Family (cacao when unset), so a bare
// name and path are enough to build the pod detector.
//
// Arguments:
//   - args: Configuration parameters specifying the model name, location and thresholds.
//
// Returns:
//   - model.Model: A configured model implementing the Model interface.
//   - error: An error if the name is unsupported or the arguments are invalid.
//
// Example:
//
// ```go
//
//	detectionModel, err := NewModel(model.NewModelArgs{
//	    Name: model.ModelNameYOLO11,
//	    Path: "/models/cacao.onnx",
//	})
//	if err != nil {
//	    log.Fatalf("Failed to create detection model: %v", err)
//	}
//
// ```
func NewModel(args model.NewModelArgs) (model.Model, error) {
	if args.Family == "" {
		args.Family = model.ModelFamilyCacao
	}
	if len(args.ClassNames) == 0 {
		names, err := ClassNamesFor(args.Family)
		if err != nil {
			return nil, err
		}
		args.ClassNames = names
	}

	switch args.Name {
	case model.ModelNameYOLOv8, model.ModelNameYOLO11, model.ModelNameYOLO11OBB:
		m, err := yolo.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported model name: %s", args.Name)
	}
}
