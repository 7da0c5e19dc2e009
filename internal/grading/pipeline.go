package grading

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/card-grader/internal/inference"
)

// verifyConfFloor is the floor passed to the detector during presence
// verification. Near zero so the best candidate is chosen here, not by the
// model service.
const verifyConfFloor = 0.001

// Labels holds the model class names the pipeline matches against. They
// follow the deployed models and are injected from configuration.
type Labels struct {
	Front  string
	Back   string
	Tear   string
	Crease string
}

// DefaultLabels returns the class names the current models emit.
func DefaultLabels() Labels {
	return Labels{Front: "Cardfront", Back: "Cardback", Tear: "tear", Crease: "cease"}
}

// ProgressFunc receives a stage-progress event. Purely observational; the
// pipeline result does not depend on it.
type ProgressFunc func(step, status string, extra map[string]interface{})

// Pipeline grades a card from its six photographs. Stages run strictly in
// order and the first failing gate terminates the run; no partial score is
// ever produced.
type Pipeline struct {
	engine inference.Engine
	labels Labels
	logger *zap.Logger
}

// NewPipeline builds a grading pipeline on top of the inference engine.
func NewPipeline(engine inference.Engine, labels Labels, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		engine: engine,
		labels: labels,
		logger: logger.Named("grading"),
	}
}

// Run executes the full pipeline for one request. On success the report
// carries every stage diagnostic plus the final score and grade (the
// fingerprint is added by the caller); on failure the StageFailure names the
// stage, the measured values and the violated threshold.
func (p *Pipeline) Run(ctx context.Context, jobID string, uploads map[string]Upload, progress ProgressFunc) (*Report, *StageFailure) {
	notify := func(step, status string, extra map[string]interface{}) {
		if progress != nil {
			progress(step, status, extra)
		}
	}
	logger := p.logger.With(zap.String("job_id", jobID))

	// Intake: formats first (all six scanned before any decoding), then
	// decode, then size and brightness.
	if failure := checkFormats(uploads); failure != nil {
		return nil, failure
	}
	assets, failure := decodeAssets(uploads)
	if failure != nil {
		return nil, failure
	}
	notify("file_ext_check", "done", nil)

	if failure := checkSizeBrightness(assets); failure != nil {
		return nil, failure
	}
	notify("size_brightness_check", "done", nil)

	// Presence: the front and back photos must actually show the card.
	frontInfo, failure := p.verifySide(ctx, assets[SlotFront], p.labels.Front, "front")
	if failure != nil {
		return nil, failure
	}
	backInfo, failure := p.verifySide(ctx, assets[SlotBack], p.labels.Back, "back")
	if failure != nil {
		return nil, failure
	}
	notify("card_verify", "done", map[string]interface{}{
		"front_conf": frontInfo.BestConf,
		"back_conf":  backInfo.BestConf,
	})

	// Bending: measure each edge photo, penalize the two worst.
	bending := Bending{
		CurvaturesPercent: make(map[string]float64, len(SideKeys)),
		PerImagePenalties: make(map[string]int, len(SideKeys)),
	}
	perImage := make([]int, 0, len(SideKeys))
	maxCurvature := 0.0
	for _, slot := range SideKeys {
		masks, err := p.engine.Segment(ctx, assets[slot].Data)
		if err != nil {
			logger.Error("segmentation call failed", zap.String("slot", slot), zap.Error(err))
			return nil, newFailure(StageBending, KindModelUnavailable, http.StatusInternalServerError,
				"segmentation model is unavailable")
		}
		m := MeasureCurvature(masks)
		penalty := CurvaturePenaltyPoints(m.Percent)
		bending.CurvaturesPercent[slot] = m.Percent
		bending.PerImagePenalties[slot] = penalty
		perImage = append(perImage, penalty)
		if m.Percent > maxCurvature {
			maxCurvature = m.Percent
		}
		logger.Debug("edge measured",
			zap.String("slot", slot),
			zap.Float64("curvature_percent", m.Percent),
			zap.Bool("has_mask", m.HasMask),
			zap.Int("mask_area", m.MaskArea))
	}
	bending.BendPenaltyTotal = BendPenaltyTotal(perImage)
	notify("bending", "done", map[string]interface{}{"max_curvature_percent": maxCurvature})

	// Defects: tears and creases on either face cost points, uncapped.
	frontPenalty, frontDefects, failure := p.scanDefects(ctx, assets[SlotFront])
	if failure != nil {
		return nil, failure
	}
	backPenalty, backDefects, failure := p.scanDefects(ctx, assets[SlotBack])
	if failure != nil {
		return nil, failure
	}
	otherPenalties := frontPenalty + backPenalty
	notify("other_defects", "done", map[string]interface{}{"total_penalty": otherPenalties})

	score := FinalScore(bending.BendPenaltyTotal, otherPenalties)
	report := &Report{
		Steps: Steps{
			FileExtCheck:        "ok",
			SizeBrightnessCheck: "ok",
			CardVerify:          CardVerify{Front: frontInfo, Back: backInfo},
			Bending:             bending,
			OtherDefects: OtherDefects{
				Front:               frontDefects,
				Back:                backDefects,
				OtherPenaltiesTotal: otherPenalties,
			},
		},
		Score: score,
		Grade: GradeLetter(score),
	}
	return report, nil
}

func (p *Pipeline) verifySide(ctx context.Context, asset *ImageAsset, target, side string) (PresenceInfo, *StageFailure) {
	detections, err := p.engine.Detect(ctx, asset.Data, verifyConfFloor)
	if err != nil {
		p.logger.Error("verification call failed", zap.String("side", side), zap.Error(err))
		return PresenceInfo{}, newFailure(StagePresence, KindModelUnavailable, http.StatusInternalServerError,
			"card verification model is unavailable")
	}

	ok, info := verifyPresence(detections, target, asset.Width, asset.Height)
	if !ok {
		return PresenceInfo{}, newFailure(StagePresence, KindPresenceFailed, http.StatusBadRequest,
			"%s image (%s) verification failed. conf=%.2f (threshold: %.2f), area=%.2f (threshold: %.2f)",
			side, target, info.BestConf, ConfThreshold, info.BestAreaFrac, AreaFracMin)
	}
	return info, nil
}

func (p *Pipeline) scanDefects(ctx context.Context, asset *ImageAsset) (int, DefectReport, *StageFailure) {
	detections, err := p.engine.Detect(ctx, asset.Data, DefectConfThreshold)
	if err != nil {
		p.logger.Error("defect call failed", zap.String("slot", asset.Slot), zap.Error(err))
		return 0, DefectReport{}, newFailure(StageDefects, KindModelUnavailable, http.StatusInternalServerError,
			"defect detection model is unavailable")
	}
	penalty, report := aggregateDefects(detections, p.labels.Tear, p.labels.Crease)
	return penalty, report, nil
}
