package scanner

import (
	"fmt"

	"go.uber.org/zap"
)

// Scanner detects the framework of a project tree and runs the matching
// dialect parser.
type Scanner struct {
	projectPath string
	logger      *zap.Logger
}

// New creates a scanner rooted at projectPath.
func New(projectPath string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{projectPath: projectPath, logger: logger}
}

// Scan detects the framework and extracts endpoints. Unsupported
// frameworks return an empty endpoint list, not an error.
func (s *Scanner) Scan() (*ScanResult, error) {
	info := NewDetector(s.projectPath).Detect()
	s.logger.Info("framework detected",
		zap.String("framework", info.Framework),
		zap.String("type", info.FrameworkType))

	var (
		endpoints []Endpoint
		err       error
	)
	switch info.Framework {
	case "nestjs":
		endpoints, err = NewNestJSParser(s.projectPath, s.logger).Parse()
	case "laravel":
		endpoints, err = NewLaravelParser(s.projectPath, s.logger).Parse()
	default:
		s.logger.Warn("no static parser for framework", zap.String("framework", info.Framework))
	}
	if err != nil {
		return nil, fmt.Errorf("scanning %s project: %w", info.Framework, err)
	}

	return &ScanResult{
		FrameworkInfo: info,
		Endpoints:     endpoints,
		ScanMethod:    "static",
	}, nil
}
