package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmbuild/common"
)

// testHook captures entries for assertions.
type testHook struct {
	mu      sync.Mutex
	Entries []*logrus.Entry
}

func (h *testHook) Levels() []logrus.Level { return logrus.AllLevels }
func (h *testHook) Fire(entry *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Entries = append(h.Entries, entry)
	return nil
}

func TestFormatter_OrderedFieldsFirst(t *testing.T) {
	f := &Formatter{
		DisableTimestamp:       true,
		NoColors:               true,
		DisplayLevelName:       ShowAll,
		FieldsDisplayWithOrder: fieldOrder,
	}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Level:   logrus.InfoLevel,
		Message: "configuring",
		Data: logrus.Fields{
			"zeta":               1,
			common.StepName:      "configure",
			common.RunID:         "abc",
			common.EasyblockName: "OpenMPI",
			"alpha":              true,
		},
	}
	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[INFO] [RunID:abc | Easyblock:OpenMPI | Step:configure | alpha:true | zeta:1] configuring\n", string(out))
}

func TestFormatter_LevelDisplayAndTruncation(t *testing.T) {
	f := &Formatter{DisableTimestamp: true, NoColors: true, DisplayLevelName: ShowAboveWarn, MaxFieldValueLength: 5, HideKeys: true}
	info := &logrus.Entry{Logger: logrus.New(), Level: logrus.InfoLevel, Message: "m", Data: logrus.Fields{"cmd": "make -j 8 install"}}
	out, err := f.Format(info)
	require.NoError(t, err)
	assert.Equal(t, "[make ...] m\n", string(out))

	warn := &logrus.Entry{Logger: logrus.New(), Level: logrus.WarnLevel, Message: "careful", Data: logrus.Fields{}}
	out, err = f.Format(warn)
	require.NoError(t, err)
	assert.Equal(t, "[WARN] careful\n", string(out))
}

func TestFormatter_Colors(t *testing.T) {
	f := &Formatter{DisableTimestamp: true, DisplayLevelName: ShowAll}
	entry := &logrus.Entry{Logger: logrus.New(), Level: logrus.ErrorLevel, Message: "boom", Data: logrus.Fields{}}
	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "\x1b[31m[ERRO]\x1b[0m"))
}

func TestNew_ConsoleBufferIsNotColored(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Console: &buf, Level: logrus.InfoLevel})
	require.NoError(t, err)
	l.ForRun("run-1", "zlib").Warn("heads up")
	assert.Contains(t, buf.String(), "[WARN] [RunID:run-1 | Easyblock:zlib] heads up")
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.False(t, IsTerminal(&buf))
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Console: &buf, Verbose: true, Level: logrus.InfoLevel})
	require.NoError(t, err)
	hook := &testHook{}
	l.AddHook(hook)
	ForStrategy(ForStep(l.ForRun("r", "b"), "build"), "ConfigureMake").Debug("running make")
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "build", hook.Entries[0].Data[common.StepName])
	assert.Equal(t, "ConfigureMake", hook.Entries[0].Data[common.StrategyName])
	assert.Contains(t, buf.String(), "running make")
}

func TestNew_FileOutput(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{Dir: dir, Quiet: true, Level: logrus.InfoLevel})
	require.NoError(t, err)
	l.ForRun("run-2", "Boost").Info("written to file")

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(dir, common.AppName+".log"))
		return err == nil && strings.Contains(string(data), "written to file")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDiscard(t *testing.T) {
	entry := Discard()
	assert.NotPanics(t, func() { entry.WithField("k", "v").Error("nothing") })
}
