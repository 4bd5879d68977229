package root

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/src-lua/apogee/internal/config"
	"github.com/src-lua/apogee/internal/ui"
)

func setupTestConfig(t *testing.T) {
	t.Helper()
	c := config.Default()
	c.DBPath = filepath.Join(t.TempDir(), "apogee.db")
	c.User = "tester"
	cfg = &c
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddDoStatus(t *testing.T) {
	setupTestConfig(t)

	out, err := run(t, newAddCmd(), "Read", "a", "chapter", "-r", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "Read a chapter")
	assert.Contains(t, out, "(daily, +30 XP)")

	out, err = run(t, newListCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Read a chapter")

	out, err = run(t, newDayCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Read a chapter")

	out, err = run(t, newLogCmd("do", "Complete a task", ui.IconDone, "completed"), "read")
	require.NoError(t, err)
	assert.Contains(t, out, "+30 XP")
	assert.Contains(t, out, "pending → completed")

	_, err = run(t, newLogCmd("skip", "Skip", ui.IconSkip, "not_necessary"), "read")
	assert.Error(t, err, "a logged task has to be restored first")

	out, err = run(t, newStatusCmd(), "--achievements")
	require.NoError(t, err)
	assert.Contains(t, out, "Status for tester")
	assert.Contains(t, out, "Achievements (")

	out, err = run(t, newRestoreCmd(), "read")
	require.NoError(t, err)
	assert.Contains(t, out, "-30 XP")
}

func TestAddRejectsBadInput(t *testing.T) {
	setupTestConfig(t)

	_, err := run(t, newAddCmd())
	assert.EqualError(t, err, "name is required")

	_, err = run(t, newAddCmd(), "Read", "--every", "weekly:funday")
	assert.Error(t, err)

	_, err = run(t, newAddCmd(), "Read", "--start", "01/02/2024")
	assert.ErrorContains(t, err, "want YYYY-MM-DD")
}

func TestEditAndPresets(t *testing.T) {
	setupTestConfig(t)

	_, err := run(t, newAddCmd(), "Stretch")
	require.NoError(t, err)

	out, err := run(t, newEditCmd(), "stretch", "--every", "weekly:mon,thu", "-r", "15")
	require.NoError(t, err)
	assert.Contains(t, out, "+15 XP")

	out, err = run(t, newAcceptCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "hydrate")
	assert.Contains(t, out, "(level 5)")

	_, err = run(t, newAcceptCmd(), "monthly_budget")
	assert.ErrorContains(t, err, "requires level 5")

	out, err = run(t, newActiveCmd(false), "stretch")
	require.NoError(t, err)
	assert.Contains(t, out, "Deactivated")

	out, err = run(t, newListCmd())
	require.NoError(t, err)
	assert.NotContains(t, out, "Stretch")

	out, err = run(t, newListCmd(), "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Stretch")
}
