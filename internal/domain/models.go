package domain

// KnownModels lists the detection model identifiers the worker can load.
var KnownModels = []string{"yolov8n", "yolov8s", "yolov8m", "yolov8l", "yolov8x"}

const DefaultModel = "yolov8n"

func IsKnownModel(name string) bool {
	for _, model := range KnownModels {
		if model == name {
			return true
		}
	}
	return false
}

// CocoClassNames maps COCO category ids (0-79) to their labels. Class filters
// on tasks and published services reference these ids.
var CocoClassNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train",
	"truck", "boat", "traffic light", "fire hydrant", "stop sign",
	"parking meter", "bench", "bird", "cat", "dog", "horse", "sheep", "cow",
	"elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag",
	"tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard",
	"tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot",
	"hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant",
	"bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote",
	"keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

func IsKnownClass(classID int) bool {
	return classID >= 0 && classID < len(CocoClassNames)
}

func ClassName(classID int) string {
	if !IsKnownClass(classID) {
		return "unknown"
	}
	return CocoClassNames[classID]
}
