package service

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"homewatch/internal/config"
	"homewatch/internal/dto"
	"homewatch/internal/logger"
	"homewatch/internal/model"
	"homewatch/internal/repository"
	"homewatch/internal/service/storage"
)

type fakePresence struct {
	loaded     bool
	detections []dto.DetectionResult
	hog        bool

	mu        sync.Mutex
	hogCalls  int
	detectRun int
}

func (f *fakePresence) Loaded() bool { return f.loaded }

func (f *fakePresence) Detect(gocv.Mat) []dto.DetectionResult {
	f.mu.Lock()
	f.detectRun++
	f.mu.Unlock()
	return f.detections
}

func (f *fakePresence) DetectPersonWithHOG(gocv.Mat) bool {
	f.mu.Lock()
	f.hogCalls++
	f.mu.Unlock()
	return f.hog
}

type fakeActivity struct {
	scores map[model.ActivityType]float64
	calls  int
}

func (f *fakeActivity) ClassifyActivity(gocv.Mat) map[model.ActivityType]float64 {
	f.calls++
	return f.scores
}

type memRepo struct {
	repository.ObservationRepository
	mu    sync.Mutex
	saved []dto.ObservationRecord
}

func (r *memRepo) InsertBatch(records []dto.ObservationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, records...)
	return nil
}

func managerConfig() *config.Config {
	return &config.Config{
		PersonClassID:        1,
		HOGFallback:          true,
		ProcessingInterval:   1,
		ProcessingWorkers:    1,
		ProcessingQueueDepth: 4,
	}
}

func testFrame(t *testing.T) gocv.Mat {
	t.Helper()
	view, err := gocv.NewMatFromBytes(16, 16, gocv.MatTypeCV8UC3, bytes.Repeat([]byte{120}, 16*16*3))
	require.NoError(t, err)
	defer view.Close()
	return view.Clone()
}

func newTestManager(t *testing.T, presence PresenceDetector, activity ActivityClassifier, cfg *config.Config) (*Manager, *memRepo) {
	m, repo, _ := newLoggedTestManager(t, presence, activity, cfg)
	return m, repo
}

func newLoggedTestManager(t *testing.T, presence PresenceDetector, activity ActivityClassifier, cfg *config.Config) (*Manager, *memRepo, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	l := logger.NewTestLogger(buf)
	repo := &memRepo{}
	m := NewManager(presence, activity, storage.NewBufferService(l, repo), nil, cfg, l)
	t.Cleanup(m.Stop)
	return m, repo, buf
}

func TestAnalyze(t *testing.T) {
	frame := testFrame(t)
	defer frame.Close()
	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	cooking := map[model.ActivityType]float64{model.Cooking: 0.9}

	cases := []struct {
		name       string
		presence   *fakePresence
		hogEnabled bool
		wantPerson bool
		wantSource model.PresenceSource
		wantHOG    int
	}{
		{
			name:       "model finds person",
			presence:   &fakePresence{loaded: true, detections: []dto.DetectionResult{{ClassID: 1, Score: 0.9}}},
			hogEnabled: true,
			wantPerson: true, wantSource: model.SourceTensorFlow, wantHOG: 0,
		},
		{
			name:       "model misses, hog finds",
			presence:   &fakePresence{loaded: true, detections: []dto.DetectionResult{{ClassID: 18, Score: 0.9}}, hog: true},
			hogEnabled: true,
			wantPerson: true, wantSource: model.SourceHOG, wantHOG: 1,
		},
		{
			name:       "no model, hog finds",
			presence:   &fakePresence{hog: true},
			hogEnabled: true,
			wantPerson: true, wantSource: model.SourceHOG, wantHOG: 1,
		},
		{
			name:       "hog disabled",
			presence:   &fakePresence{hog: true},
			hogEnabled: false,
			wantPerson: false, wantSource: model.SourceNone, wantHOG: 0,
		},
		{
			name:       "nobody",
			presence:   &fakePresence{loaded: true},
			hogEnabled: true,
			wantPerson: false, wantSource: model.SourceNone, wantHOG: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := managerConfig()
			cfg.HOGFallback = tc.hogEnabled
			activity := &fakeActivity{scores: cooking}
			m, _ := newTestManager(t, tc.presence, activity, cfg)

			obs, _ := m.Analyze(frame, "kitchen", ts)
			require.NotEmpty(t, obs.ID)
			require.Equal(t, "kitchen", obs.Camera)
			require.Equal(t, ts, obs.Timestamp)
			require.Equal(t, tc.wantPerson, obs.PersonPresent)
			require.Equal(t, tc.wantSource, obs.Source)
			require.Equal(t, tc.wantHOG, tc.presence.hogCalls)
			if tc.wantPerson {
				require.Equal(t, cooking, obs.Activities)
				require.Equal(t, model.Cooking, obs.TopActivity())
			} else {
				require.Zero(t, activity.calls)
				require.Empty(t, obs.Activities)
				require.Equal(t, model.Absent, obs.TopActivity())
			}
		})
	}
}

func TestAnalyze_LogsCamera(t *testing.T) {
	frame := testFrame(t)
	defer frame.Close()

	presence := &fakePresence{loaded: true, detections: []dto.DetectionResult{{ClassID: 1, Score: 0.9}}}
	m, _, buf := newLoggedTestManager(t, presence, &fakeActivity{scores: map[model.ActivityType]float64{model.Eating: 0.7}}, managerConfig())

	m.Analyze(frame, "kitchen", time.Now())
	m.Stop()
	require.Contains(t, buf.String(), "[kitchen]")
	require.Contains(t, buf.String(), "Person present (tensorflow), top activity EATING")
}

func TestHandleCameraImage_ProcessesEveryNthFrame(t *testing.T) {
	frame := testFrame(t)
	defer frame.Close()
	jpg, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	require.NoError(t, err)
	defer jpg.Close()
	image := append([]byte(nil), jpg.GetBytes()...)

	cfg := managerConfig()
	cfg.ProcessingInterval = 3
	presence := &fakePresence{loaded: true, detections: []dto.DetectionResult{{ClassID: 1, Score: 0.8}}}
	m, repo := newTestManager(t, presence, &fakeActivity{scores: map[model.ActivityType]float64{model.Reading: 0.5}}, cfg)

	for i := 0; i < 7; i++ {
		m.HandleCameraImage(image, "kitchen")
	}
	m.Stop()

	require.Equal(t, 2, presence.detectRun)
	require.Equal(t, 2, m.GetBufferService().FlushObservations())
	require.Len(t, repo.saved, 2)
	require.True(t, repo.saved[0].PersonPresent)
	require.InDelta(t, 0.5, repo.saved[0].Activities[model.Reading], 1e-9)
	require.Equal(t, []dto.DetectionResult{{ClassID: 1, Score: 0.8}}, repo.saved[0].Detections)
}

func TestHandleCameraImage_BadFrameIsSkipped(t *testing.T) {
	presence := &fakePresence{loaded: true}
	m, _ := newTestManager(t, presence, &fakeActivity{}, managerConfig())

	m.HandleCameraImage([]byte("garbage"), "kitchen")
	m.Stop()
	require.Zero(t, presence.detectRun)
	require.Zero(t, m.GetBufferService().Pending())
}

func TestStopIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, &fakePresence{}, &fakeActivity{}, managerConfig())
	m.Stop()
	m.Stop()
	// Frames arriving after shutdown are ignored.
	m.HandleCameraImage([]byte{0xFF, 0xD8}, "kitchen")
}
