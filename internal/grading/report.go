package grading

// Slot keys for the six required uploads, in evaluation order.
const (
	SlotFront = "image_front"
	SlotBack  = "image_back"
	SlotSide1 = "image_side_1"
	SlotSide2 = "image_side_2"
	SlotSide3 = "image_side_3"
	SlotSide4 = "image_side_4"
)

// SlotKeys lists every upload slot in the order the pipeline checks them.
var SlotKeys = []string{SlotFront, SlotBack, SlotSide1, SlotSide2, SlotSide3, SlotSide4}

// SideKeys lists the four edge-view slots.
var SideKeys = []string{SlotSide1, SlotSide2, SlotSide3, SlotSide4}

// Upload is one raw image as submitted by the client.
type Upload struct {
	Slot     string
	Filename string
	Data     []byte
}

// PresenceInfo is the diagnostic payload of a card presence check.
type PresenceInfo struct {
	Target       string  `json:"target"`
	BestConf     float64 `json:"best_conf"`
	BestAreaFrac float64 `json:"best_area_frac"`
}

// CardVerify groups the front and back presence diagnostics.
type CardVerify struct {
	Front PresenceInfo `json:"front"`
	Back  PresenceInfo `json:"back"`
}

// Bending reports the curvature stage: measured percentage and penalty per
// edge image plus the capped total.
type Bending struct {
	CurvaturesPercent map[string]float64 `json:"curvatures_percent"`
	PerImagePenalties map[string]int     `json:"per_image_penalties"`
	BendPenaltyTotal  int                `json:"bend_penalty_total"`
}

// DetectionInfo is one detection in the defect diagnostic list.
type DetectionInfo struct {
	Type string     `json:"type"`
	Conf float64    `json:"conf"`
	Box  [4]float64 `json:"box"`
}

// DefectReport lists every detection on one card side.
type DefectReport struct {
	Detections []DetectionInfo `json:"detections"`
}

// OtherDefects groups the defect diagnostics and the uncapped penalty sum.
type OtherDefects struct {
	Front               DefectReport `json:"front"`
	Back                DefectReport `json:"back"`
	OtherPenaltiesTotal int          `json:"other_penalties_total"`
}

// Steps collects every stage diagnostic for the success payload.
type Steps struct {
	FileExtCheck        string       `json:"file_ext_check"`
	SizeBrightnessCheck string       `json:"size_brightness_check"`
	CardVerify          CardVerify   `json:"card_verify"`
	Bending             Bending      `json:"bending"`
	OtherDefects        OtherDefects `json:"other_defects"`
}

// Report is the full grading result. Hash is filled in by the orchestration
// layer once the run has succeeded.
type Report struct {
	Steps Steps  `json:"steps"`
	Score int    `json:"score"`
	Grade string `json:"grade"`
	Hash  string `json:"hash"`
}
