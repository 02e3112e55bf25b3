// internal/job/job_test.go
package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "colorscheme-indexer/internal/errors"
	"colorscheme-indexer/internal/model"
)

// MockReportStore is a mock of the ReportStore interface.
type MockReportStore struct {
	mock.Mock
}

func (m *MockReportStore) GetLastRunAt(ctx context.Context, jobName string) (*time.Time, error) {
	args := m.Called(ctx, jobName)
	var t *time.Time
	if v := args.Get(0); v != nil {
		t = v.(*time.Time)
	}
	return t, args.Error(1)
}
func (m *MockReportStore) CreateReport(ctx context.Context, report *model.RunReport) error {
	return m.Called(ctx, report).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Post(ctx context.Context, url string, body []byte) error {
	return m.Called(ctx, url, body).Error(0)
}

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, rc model.RunContext) (model.Results, error) {
	args := m.Called(ctx, rc)
	var results model.Results
	if v := args.Get(0); v != nil {
		results = v.(model.Results)
	}
	return results, args.Error(1)
}

func newTestDispatcher(reports ReportStore, notifier Notifier, webhook string) *Dispatcher {
	d := NewDispatcher(reports, notifier, webhook, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tick := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time {
		tick = tick.Add(2 * time.Second)
		return tick
	}
	return d
}

func TestParse(t *testing.T) {
	for _, name := range []string{"import", "update", "clean"} {
		got, err := Parse(name)
		require.NoError(t, err)
		assert.Equal(t, Name(name), got)
	}

	_, err := Parse("deploy")
	var unknown *custom_errors.ErrUnknownJob
	assert.ErrorAs(t, err, &unknown)
}

func TestDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()
	lastRun := time.Date(2024, 6, 9, 12, 0, 0, 0, time.UTC)

	t.Run("runs the job with its last run and stores a report", func(t *testing.T) {
		reports, notifier, runner := new(MockReportStore), new(MockNotifier), new(MockRunner)
		reports.On("GetLastRunAt", ctx, "update").Return(&lastRun, nil)
		runner.On("Run", ctx, model.RunContext{LastRunAt: &lastRun, Force: true, Only: []string{"o/r"}}).
			Return(model.Results{"repository_count": 1}, nil)
		reports.On("CreateReport", ctx, mock.MatchedBy(func(r *model.RunReport) bool {
			return r.JobName == "update" && r.ElapsedTime == 2*time.Second && r.Results["repository_count"] == 1 && r.Partial
		})).Return(nil)
		notifier.On("Post", ctx, "https://build.example/hook", []byte(nil)).Return(nil).Once()

		d := newTestDispatcher(reports, notifier, "https://build.example/hook")
		d.Register(Update, runner)
		report, err := d.Dispatch(ctx, Update, Options{Force: true, Only: []string{"o/r"}})

		require.NoError(t, err)
		assert.Equal(t, "update", report.JobName)
		assert.True(t, report.Partial, "a run restricted to some repositories is partial")
		reports.AssertExpectations(t)
		runner.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("first run has no last run and no webhook configured", func(t *testing.T) {
		reports, notifier, runner := new(MockReportStore), new(MockNotifier), new(MockRunner)
		reports.On("GetLastRunAt", ctx, "import").Return(nil, nil)
		runner.On("Run", ctx, model.RunContext{}).Return(model.Results{}, nil)
		reports.On("CreateReport", ctx, mock.Anything).Return(nil)

		d := newTestDispatcher(reports, notifier, "")
		d.Register(Import, runner)
		report, err := d.Dispatch(ctx, Import, Options{})

		require.NoError(t, err)
		assert.False(t, report.Partial)
		notifier.AssertNotCalled(t, "Post", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("forced full runs are not partial", func(t *testing.T) {
		reports, notifier, runner := new(MockReportStore), new(MockNotifier), new(MockRunner)
		reports.On("GetLastRunAt", ctx, "update").Return(&lastRun, nil)
		runner.On("Run", ctx, model.RunContext{LastRunAt: &lastRun, Force: true}).Return(model.Results{}, nil)
		reports.On("CreateReport", ctx, mock.MatchedBy(func(r *model.RunReport) bool {
			return !r.Partial
		})).Return(nil).Once()

		d := newTestDispatcher(reports, notifier, "")
		d.Register(Update, runner)
		_, err := d.Dispatch(ctx, Update, Options{Force: true})

		require.NoError(t, err)
		reports.AssertExpectations(t)
	})

	t.Run("failed run records no report", func(t *testing.T) {
		reports, notifier, runner := new(MockReportStore), new(MockNotifier), new(MockRunner)
		reports.On("GetLastRunAt", ctx, "clean").Return(nil, nil)
		runner.On("Run", ctx, mock.Anything).Return(nil, errors.New("db down"))

		d := newTestDispatcher(reports, notifier, "https://build.example/hook")
		d.Register(Clean, runner)
		_, err := d.Dispatch(ctx, Clean, Options{})

		require.Error(t, err)
		reports.AssertNotCalled(t, "CreateReport", mock.Anything, mock.Anything)
		notifier.AssertNotCalled(t, "Post", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("webhook failure does not fail the run", func(t *testing.T) {
		reports, notifier, runner := new(MockReportStore), new(MockNotifier), new(MockRunner)
		reports.On("GetLastRunAt", ctx, "clean").Return(nil, nil)
		runner.On("Run", ctx, mock.Anything).Return(model.Results{}, nil)
		reports.On("CreateReport", ctx, mock.Anything).Return(nil)
		notifier.On("Post", ctx, mock.Anything, mock.Anything).Return(errors.New("502"))

		d := newTestDispatcher(reports, notifier, "https://build.example/hook")
		d.Register(Clean, runner)
		_, err := d.Dispatch(ctx, Clean, Options{})

		assert.NoError(t, err)
	})

	t.Run("unregistered job", func(t *testing.T) {
		d := newTestDispatcher(new(MockReportStore), new(MockNotifier), "")

		_, err := d.Dispatch(ctx, Update, Options{})

		var unknown *custom_errors.ErrUnknownJob
		assert.ErrorAs(t, err, &unknown)
	})
}
