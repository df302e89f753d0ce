// SPDX-License-Identifier: Apache-2.0

package workflows

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/automa-saga/automa"
	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, &automa.Report{Id: StartupWorkflowId, Status: automa.StatusSuccess}))
	assert.Contains(t, buf.String(), StartupWorkflowId)

	err := WriteReport(&buf, nil)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, errorx.IllegalArgument))
}

func TestSaveReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := SaveReport(&automa.Report{Id: StartupWorkflowId, Status: automa.StatusFailed}, dir, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "startup_report_20260304_050607.yaml"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, b)

	path, err = SaveReport(&automa.Report{}, dir, now)
	require.NoError(t, err)
	assert.Equal(t, "workflow_report_20260304_050607.yaml", filepath.Base(path))
}
