package config

import "time"

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(botToken, channelID, apiURL string) *Slack {
	return &Slack{
		botToken:  botToken,
		channelID: channelID,
		apiURL:    apiURL,
	}
}

// NewGeminiForTest creates a Gemini config for testing purposes
func NewGeminiForTest(projectID, location string) *Gemini {
	return &Gemini{
		projectID: projectID,
		location:  location,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, sqlitePath string) *Repository {
	return &Repository{
		backend:    backend,
		sqlitePath: sqlitePath,
	}
}

// NewStorageForTest creates a Storage config for testing purposes
func NewStorageForTest(backend, bucket string) *Storage {
	return &Storage{
		backend: backend,
		bucket:  bucket,
	}
}

// NewTriageForTest creates a Triage config for testing purposes
func NewTriageForTest(maxRounds int, classifierTimeout, lockWait time.Duration, taxonomyPath string) *Triage {
	return &Triage{
		maxRounds:         maxRounds,
		classifierTimeout: classifierTimeout,
		lockWait:          lockWait,
		taxonomyPath:      taxonomyPath,
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}
