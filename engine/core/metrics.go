package core

import "sync"

const AVG_COUNT uint8 = 30

type MetricsState struct {
	mu sync.Mutex

	LoadAVGCounter uint8
	MStimes        [AVG_COUNT]float64
	MSavg          float64

	AssetsLoaded       uint64
	LoadsFailed        uint64
	DownloadsCompleted uint64
	DownloadsFailed    uint64
	BytesDownloaded    uint64
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			MStimes: [AVG_COUNT]float64{0},
		}
	})
	return nil
}

// MetricsRecordLoad tracks one asset load and folds its duration into the
// rolling load-time average.
func MetricsRecordLoad(elapsedSeconds float64, succeeded bool) {
	if metricsState == nil {
		return
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()

	if !succeeded {
		metricsState.LoadsFailed++
		return
	}
	metricsState.AssetsLoaded++

	loadMS := elapsedSeconds * 1000.0
	metricsState.MStimes[metricsState.LoadAVGCounter] = loadMS
	if metricsState.LoadAVGCounter == AVG_COUNT-1 {
		sum := 0.0
		for i := uint8(0); i < AVG_COUNT; i++ {
			sum += metricsState.MStimes[i]
		}
		metricsState.MSavg = sum / float64(AVG_COUNT)
	}
	metricsState.LoadAVGCounter++
	metricsState.LoadAVGCounter %= AVG_COUNT
}

// MetricsRecordDownload tracks one remote fetch attempt outcome.
func MetricsRecordDownload(bytes int64, succeeded bool) {
	if metricsState == nil {
		return
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()

	if succeeded {
		metricsState.DownloadsCompleted++
		metricsState.BytesDownloaded += uint64(bytes)
	} else {
		metricsState.DownloadsFailed++
	}
}

func MetricsLoadTime() float64 {
	if metricsState == nil {
		return 0
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	return metricsState.MSavg
}

// MetricsSnapshot returns a copy of the counters for reporting.
func MetricsSnapshot() (assetsLoaded, loadsFailed, downloadsCompleted, downloadsFailed, bytesDownloaded uint64) {
	if metricsState == nil {
		return
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	return metricsState.AssetsLoaded, metricsState.LoadsFailed,
		metricsState.DownloadsCompleted, metricsState.DownloadsFailed, metricsState.BytesDownloaded
}
