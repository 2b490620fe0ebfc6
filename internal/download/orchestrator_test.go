package download

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estadistica/internal/config"
	"estadistica/internal/portal"
	"estadistica/pkg/contracts/domain"
	"estadistica/pkg/contracts/events"
)

type fakeGate struct {
	err   error
	calls int
}

func (g *fakeGate) CheckSession(ctx context.Context) error {
	g.calls++
	return g.err
}

// scriptedFetcher returns the scripted errors for a date in order, then
// succeeds; an unscripted date succeeds on the first attempt.
type scriptedFetcher struct {
	script map[string][]error
	calls  []string
	onCall func(date time.Time)
}

func (f *scriptedFetcher) Fetch(ctx context.Context, date time.Time) (string, error) {
	key := date.Format("2006-01-02")
	f.calls = append(f.calls, key)
	if f.onCall != nil {
		f.onCall(date)
	}
	if errs := f.script[key]; len(errs) > 0 {
		err := errs[0]
		f.script[key] = errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "ExcelsDescargados/" + key + ".xlsx", nil
}

func testConfig(retries int) *config.Config {
	return &config.Config{
		General: config.GeneralConfig{
			RetryAttempts: retries,
			// no pacing in tests
			WaitBetween: 0,
		},
	}
}

func drain(ch <-chan events.TaskProgress) []events.TaskProgress {
	var out []events.TaskProgress
	for p := range ch {
		out = append(out, p)
	}
	return out
}

func TestOrchestrator_AllSucceed(t *testing.T) {
	fetcher := &scriptedFetcher{script: map[string][]error{}}
	orch := NewOrchestrator(&fakeGate{}, fetcher, testConfig(3), slog.Default())

	dr := domain.DateRange{Year: 2024, Month: 3, DayStart: 1, DayEnd: 3}
	summary, err := orch.Run(context.Background(), dr)
	require.NoError(t, err)

	assert.Len(t, summary.Succeeded, 3)
	assert.Empty(t, summary.Failed)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03"}, fetcher.calls)
	assert.Equal(t, orch.RunID(), summary.RunID)

	progress := drain(orch.Progress())
	assert.Len(t, progress, 3)
	for _, e := range progress {
		assert.Equal(t, orch.RunID(), e.RunID)
		assert.Equal(t, 1, e.Attempts)
		assert.NotEmpty(t, e.FilePath)
	}
}

func TestOrchestrator_RetryBudget(t *testing.T) {
	timeout := func(day int) error {
		return NewTimeoutError(time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC), "result table did not appear", nil)
	}

	tests := []struct {
		name          string
		script        []error
		wantSucceeded bool
		wantAttempts  int
	}{
		{
			name:          "fails twice then succeeds within budget",
			script:        []error{timeout(1), timeout(1)},
			wantSucceeded: true,
			wantAttempts:  3,
		},
		{
			name:          "budget exhausted",
			script:        []error{timeout(1), timeout(1), timeout(1)},
			wantSucceeded: false,
			wantAttempts:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &scriptedFetcher{script: map[string][]error{"2024-03-01": tt.script}}
			orch := NewOrchestrator(&fakeGate{}, fetcher, testConfig(3), slog.Default())

			dr := domain.DateRange{Year: 2024, Month: 3, DayStart: 1, DayEnd: 1}
			summary, err := orch.Run(context.Background(), dr)
			require.NoError(t, err)
			assert.Len(t, fetcher.calls, tt.wantAttempts)

			progress := drain(orch.Progress())
			require.NotEmpty(t, progress)
			last := progress[len(progress)-1]
			assert.Equal(t, tt.wantAttempts, last.Attempts)

			if tt.wantSucceeded {
				require.Len(t, summary.Succeeded, 1)
				assert.Empty(t, summary.Failed)
				assert.Equal(t, events.TaskStatusSucceeded, last.Status)
			} else {
				assert.Empty(t, summary.Succeeded)
				require.Len(t, summary.Failed, 1)
				assert.Equal(t, events.TaskStatusFailed, last.Status)
				assert.NotEmpty(t, summary.Failed[0].Error)
			}
		})
	}
}

func TestOrchestrator_FailedDateDoesNotAbortRun(t *testing.T) {
	day2 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	fetcher := &scriptedFetcher{script: map[string][]error{
		"2024-03-02": {
			NewTimeoutError(day2, "exported file did not arrive", portal.ErrDownloadTimeout),
			NewTimeoutError(day2, "exported file did not arrive", portal.ErrDownloadTimeout),
			NewTimeoutError(day2, "exported file did not arrive", portal.ErrDownloadTimeout),
		},
	}}
	orch := NewOrchestrator(&fakeGate{}, fetcher, testConfig(3), slog.Default())

	dr := domain.DateRange{Year: 2024, Month: 3, DayStart: 1, DayEnd: 3}
	summary, err := orch.Run(context.Background(), dr)
	require.NoError(t, err)

	assert.Len(t, summary.Succeeded, 2)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "2024-03-02", summary.Failed[0].Date.Format("2006-01-02"))
	// day 3 still fetched after day 2 exhausted its budget
	assert.Equal(t, "2024-03-03", fetcher.calls[len(fetcher.calls)-1])
}

func TestOrchestrator_SessionFailureAbortsBeforeAnyFetch(t *testing.T) {
	fetcher := &scriptedFetcher{script: map[string][]error{}}
	gate := &fakeGate{err: portal.ErrMarkerNotFound}
	orch := NewOrchestrator(gate, fetcher, testConfig(3), slog.Default())

	dr := domain.DateRange{Year: 2024, Month: 3, DayStart: 1, DayEnd: 3}
	summary, err := orch.Run(context.Background(), dr)

	require.Error(t, err)
	assert.Equal(t, KindSession, ErrorKind(err))
	assert.Empty(t, fetcher.calls)
	assert.Empty(t, summary.Succeeded)
	assert.Len(t, summary.Failed, 3)
	for _, res := range summary.Failed {
		assert.NotEmpty(t, res.Error)
	}
}

func TestOrchestrator_FatalElementErrorFailsRemaining(t *testing.T) {
	day2 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	fetcher := &scriptedFetcher{script: map[string][]error{
		"2024-03-02": {NewElementNotFoundError(day2, portal.ErrMarkerNotFound)},
	}}
	orch := NewOrchestrator(&fakeGate{}, fetcher, testConfig(3), slog.Default())

	dr := domain.DateRange{Year: 2024, Month: 3, DayStart: 1, DayEnd: 4}
	summary, err := orch.Run(context.Background(), dr)

	require.Error(t, err)
	assert.Equal(t, KindElementNotFound, ErrorKind(err))
	assert.Len(t, summary.Succeeded, 1)
	assert.Len(t, summary.Failed, 3)
	// no fetch attempted past the fatal date
	assert.Equal(t, []string{"2024-03-01", "2024-03-02"}, fetcher.calls)
}

func TestOrchestrator_CancellationSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &scriptedFetcher{script: map[string][]error{}}
	fetcher.onCall = func(date time.Time) {
		if date.Day() == 2 {
			cancel()
		}
	}
	orch := NewOrchestrator(&fakeGate{}, fetcher, testConfig(3), slog.Default())

	dr := domain.DateRange{Year: 2024, Month: 3, DayStart: 1, DayEnd: 5}
	summary, err := orch.Run(ctx, dr)
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	// days 3..5 never fetched
	assert.LessOrEqual(t, len(fetcher.calls), 2)
	assert.NotEmpty(t, summary.Failed)
}

func TestOrchestrator_CancelledRunEmitsEveryTerminalEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &scriptedFetcher{script: map[string][]error{}}
	orch := NewOrchestrator(&fakeGate{}, fetcher, testConfig(3), slog.Default())

	dr := domain.DateRange{Year: 2024, Month: 3, DayStart: 1, DayEnd: 20}
	summary, err := orch.Run(ctx, dr)
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Empty(t, fetcher.calls)

	// one terminal event per date, none lost to the cancelled context
	progress := drain(orch.Progress())
	require.Len(t, progress, 20)
	seen := make(map[string]bool, len(progress))
	for _, p := range progress {
		assert.Equal(t, events.TaskStatusCancelled, p.Status)
		seen[p.Date.Format("2006-01-02")] = true
	}
	assert.Len(t, seen, 20)
}

func TestOrchestrator_InvalidRange(t *testing.T) {
	orch := NewOrchestrator(&fakeGate{}, &scriptedFetcher{}, testConfig(3), slog.Default())

	_, err := orch.Run(context.Background(), domain.DateRange{Year: 2024, Month: 3, DayStart: 10, DayEnd: 5})
	require.Error(t, err)
	assert.Equal(t, KindConfig, ErrorKind(err))
}

func TestTaskTransitions(t *testing.T) {
	task := newTask(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, events.TaskStatusPending, task.Status)
	assert.False(t, task.terminal())

	task.start()
	assert.Equal(t, events.TaskStatusInProgress, task.Status)
	assert.Equal(t, 1, task.Attempts)

	task.retry(errors.New("boom"))
	assert.Equal(t, events.TaskStatusRetrying, task.Status)
	assert.False(t, task.terminal())

	task.start()
	task.succeed("out.xlsx")
	assert.True(t, task.terminal())
	assert.Equal(t, 2, task.Attempts)
	assert.NoError(t, task.LastErr)

	p := task.progress("run-1")
	assert.Equal(t, "run-1", p.RunID)
	assert.Equal(t, events.TaskStatusSucceeded, p.Status)
	assert.Equal(t, "out.xlsx", p.FilePath)
	assert.Empty(t, p.Error)
}

func TestClassify(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		err           error
		wantKind      Kind
		wantRetryable bool
	}{
		{"marker missing is fatal", portal.ErrMarkerNotFound, KindElementNotFound, false},
		{"result timeout retries", portal.ErrResultTimeout, KindDownloadTimeout, true},
		{"download timeout retries", portal.ErrDownloadTimeout, KindDownloadTimeout, true},
		{"export link missing retries", portal.ErrExportNotFound, KindDownloadTimeout, true},
		{"unknown error retries", errors.New("net hiccup"), KindDownloadTimeout, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(date, tt.err)
			assert.Equal(t, tt.wantKind, err.Kind)
			assert.Equal(t, tt.wantRetryable, IsRetryable(err))
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}
