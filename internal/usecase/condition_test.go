package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/card-grader/internal/grading"
	"github.com/example/card-grader/internal/inference"
	"github.com/example/card-grader/internal/notify"
	"github.com/example/card-grader/internal/repository"
)

type stubStore struct {
	saved   []*repository.CardGrade
	saveErr error
	found   *repository.CardGrade
	counts  []repository.GradeCount
}

func (s *stubStore) SaveGrade(ctx context.Context, grade *repository.CardGrade) error {
	s.saved = append(s.saved, grade)
	return s.saveErr
}

func (s *stubStore) FindByHash(ctx context.Context, hash string) (*repository.CardGrade, error) {
	if s.found == nil {
		return nil, errors.New("not found")
	}
	return s.found, nil
}

func (s *stubStore) GradeCounts(ctx context.Context) ([]repository.GradeCount, error) {
	return s.counts, nil
}

type stubCache struct {
	setErrs []error
	setKeys []string
	values  map[string]string
}

func (s *stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.setKeys = append(s.setKeys, key)
	if len(s.setErrs) == 0 {
		return nil
	}
	err := s.setErrs[0]
	s.setErrs = s.setErrs[1:]
	return err
}

func (s *stubCache) Get(ctx context.Context, key string) (string, error) {
	if value, ok := s.values[key]; ok {
		return value, nil
	}
	return "", errors.New("missing")
}

type stubNotifier struct {
	events []notify.Event
}

func (s *stubNotifier) Publish(jobID string, event notify.Event) {
	s.events = append(s.events, event)
}

type stubEngine struct {
	detectCalls int
	detectErr   error
}

func (s *stubEngine) Detect(ctx context.Context, img []byte, confFloor float64) ([]inference.Detection, error) {
	s.detectCalls++
	if s.detectErr != nil {
		return nil, s.detectErr
	}
	if confFloor == grading.DefectConfThreshold {
		return nil, nil
	}
	return []inference.Detection{
		{Label: "Cardfront", Confidence: 0.9, Box: inference.Box{X2: 640, Y2: 500}},
		{Label: "Cardback", Confidence: 0.9, Box: inference.Box{X2: 640, Y2: 500}},
	}, nil
}

func (s *stubEngine) Segment(ctx context.Context, img []byte) ([]inference.Mask, error) {
	return nil, nil
}

func testUploads(t *testing.T) map[string]grading.Upload {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 800, 800))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	uploads := make(map[string]grading.Upload, len(grading.SlotKeys))
	for _, slot := range grading.SlotKeys {
		uploads[slot] = grading.Upload{Slot: slot, Filename: slot + ".png", Data: buf.Bytes()}
	}
	return uploads
}

func newTestUseCase(store repository.Store, cache Cache, notifier Notifier, engine inference.Engine) *ConditionUseCase {
	pipeline := grading.NewPipeline(engine, grading.DefaultLabels(), zap.NewNop())
	return NewConditionUseCase(pipeline, repository.NewRouter(store), cache, notifier, zap.NewNop())
}

func TestCheckPersistsFingerprintExactlyOnce(t *testing.T) {
	store := &stubStore{}
	cache := &stubCache{}
	notifier := &stubNotifier{}
	uc := newTestUseCase(store, cache, notifier, &stubEngine{})

	report, err := uc.Check(context.Background(), "job-1", "dev.tako.today", testUploads(t))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if report.Score != 100 || report.Grade != "S+" {
		t.Fatalf("expected 100/S+, got %d/%s", report.Score, report.Grade)
	}
	if report.Hash == "" {
		t.Fatal("expected a fingerprint on success")
	}

	if len(store.saved) != 1 {
		t.Fatalf("expected exactly one persisted grade, got %d", len(store.saved))
	}
	if store.saved[0].Hash != report.Hash || store.saved[0].GradeCode != "S+" {
		t.Fatalf("persisted record does not match the report: %+v", store.saved[0])
	}

	last := notifier.events[len(notifier.events)-1]
	if last.Type != "result" || last.Status != "done" {
		t.Fatalf("expected a final result event, got %+v", last)
	}
	if last.Extra["hash"] != report.Hash {
		t.Fatalf("result event carries wrong hash: %+v", last.Extra)
	}
}

func TestCheckStageFailureDoesNotPersist(t *testing.T) {
	store := &stubStore{}
	notifier := &stubNotifier{}
	uploads := testUploads(t)
	uploads[grading.SlotFront] = grading.Upload{
		Slot:     grading.SlotFront,
		Filename: "front.gif",
		Data:     uploads[grading.SlotFront].Data,
	}
	uc := newTestUseCase(store, &stubCache{}, notifier, &stubEngine{})

	_, err := uc.Check(context.Background(), "job-2", "dev.tako.today", uploads)

	var failure *grading.StageFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected StageFailure, got %T: %v", err, err)
	}
	if failure.Status != 400 {
		t.Fatalf("unexpected status: %d", failure.Status)
	}
	if len(store.saved) != 0 {
		t.Fatal("a failed run must not persist a grade")
	}

	last := notifier.events[len(notifier.events)-1]
	if last.Status != "error" {
		t.Fatalf("expected a terminal error event, got %+v", last)
	}
}

func TestCheckAbortsWhenProcessingFlagCannotBeSet(t *testing.T) {
	store := &stubStore{}
	engine := &stubEngine{}
	cache := &stubCache{setErrs: []error{errors.New("redis down")}}
	uc := newTestUseCase(store, cache, &stubNotifier{}, engine)

	_, err := uc.Check(context.Background(), "job-3", "dev.tako.today", testUploads(t))
	if err == nil {
		t.Fatal("expected an error when the processing flag cannot be set")
	}
	if engine.detectCalls != 0 {
		t.Fatal("pipeline must not run without the processing flag")
	}
	if len(store.saved) != 0 {
		t.Fatal("nothing may be persisted")
	}
}

func TestCheckRoutesPersistenceByOriginHost(t *testing.T) {
	fallback := &stubStore{}
	secondary := &stubStore{}
	pipeline := grading.NewPipeline(&stubEngine{}, grading.DefaultLabels(), zap.NewNop())
	router := repository.NewRouter(fallback)
	router.Route("api.tako.today", secondary)
	uc := NewConditionUseCase(pipeline, router, &stubCache{}, &stubNotifier{}, zap.NewNop())

	if _, err := uc.Check(context.Background(), "job-4", "API.tako.today:443", testUploads(t)); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if len(secondary.saved) != 1 {
		t.Fatalf("expected the secondary store to receive the grade, got %d", len(secondary.saved))
	}
	if len(fallback.saved) != 0 {
		t.Fatal("the fallback store must not be written")
	}
}

func TestCheckCacheFailureAfterPersistIsNotFatal(t *testing.T) {
	store := &stubStore{}
	// First set (processing flag) succeeds, the report set keeps failing.
	cache := &stubCache{setErrs: []error{nil, errors.New("boom"), errors.New("boom"), errors.New("boom")}}
	uc := newTestUseCase(store, cache, &stubNotifier{}, &stubEngine{})

	report, err := uc.Check(context.Background(), "job-5", "dev.tako.today", testUploads(t))
	if err != nil {
		t.Fatalf("a cache failure after the write must not fail the request: %v", err)
	}
	if len(store.saved) != 1 || report.Hash == "" {
		t.Fatal("the grade must still be persisted once")
	}
}

func TestGetGradeSummary(t *testing.T) {
	store := &stubStore{counts: []repository.GradeCount{
		{GradeCode: "S+", Count: 3},
		{GradeCode: "D", Count: 2},
	}}
	uc := newTestUseCase(store, &stubCache{}, &stubNotifier{}, &stubEngine{})

	summary, err := uc.GetGradeSummary(context.Background(), "dev.tako.today")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 5 {
		t.Fatalf("expected 5 total, got %d", summary.Total)
	}
	if summary.Grades["S+"] != 3 || summary.Grades["D"] != 2 {
		t.Fatalf("unexpected distribution: %+v", summary.Grades)
	}
}
