// SPDX-License-Identifier: Apache-2.0

package workflows

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/automa-saga/automa"
	"github.com/joomcode/errorx"
	"gopkg.in/yaml.v3"
)

const reportTimestampFormat = "20060102_150405"

// WriteReport encodes the workflow execution report as YAML.
func WriteReport(w io.Writer, report *automa.Report) error {
	if report == nil {
		return errorx.IllegalArgument.New("workflow report cannot be nil")
	}

	b, err := yaml.Marshal(report)
	if err != nil {
		return errorx.IllegalFormat.Wrap(err, "failed to marshal workflow report")
	}

	_, err = w.Write(b)
	return err
}

// SaveReport writes the report to <dir>/<id>_report_<timestamp>.yaml and returns the file path.
func SaveReport(report *automa.Report, dir string, now time.Time) (string, error) {
	if report == nil {
		return "", errorx.IllegalArgument.New("workflow report cannot be nil")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errorx.ExternalError.Wrap(err, "failed to create report directory %q", dir)
	}

	id := report.Id
	if id == "" {
		id = "workflow"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_report_%s.yaml", id, now.Format(reportTimestampFormat)))

	f, err := os.Create(path)
	if err != nil {
		return "", errorx.ExternalError.Wrap(err, "failed to create report file %q", path)
	}
	defer f.Close()

	if err := WriteReport(f, report); err != nil {
		return "", err
	}
	return path, nil
}
