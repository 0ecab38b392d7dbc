package agent

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// swapProfile replaces the shared agent settings file with the phase's
// permission profile and returns a restore function. The restore function is
// always safe to call and puts the original file back (or removes the file
// if none existed). The settings file is the one shared mutable resource in
// the whole design; the caller must defer restore unconditionally.
func (r *ExecRunner) swapProfile(phase Phase) (restore func(), err error) {
	profilePath := r.profiles.Implement
	if phase == PhasePlan {
		profilePath = r.profiles.Plan
	}
	if profilePath == "" {
		return func() {}, nil
	}
	if !filepath.IsAbs(profilePath) {
		profilePath = filepath.Join(r.repoRoot, profilePath)
	}

	profile, err := os.ReadFile(profilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("profile", profilePath).Msg("permission profile not found, running without swap")
			return func() {}, nil
		}
		return nil, fmt.Errorf("read permission profile: %w", err)
	}

	settingsPath := r.cfg.SettingsPath
	if !filepath.IsAbs(settingsPath) {
		settingsPath = filepath.Join(r.repoRoot, settingsPath)
	}

	original, readErr := os.ReadFile(settingsPath)
	hadOriginal := readErr == nil
	if readErr != nil && !os.IsNotExist(readErr) {
		return nil, fmt.Errorf("read agent settings: %w", readErr)
	}

	if err := os.MkdirAll(filepath.Dir(settingsPath), 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(settingsPath, profile, 0o644); err != nil {
		return nil, fmt.Errorf("install permission profile: %w", err)
	}
	log.Debug().Str("phase", string(phase)).Str("profile", profilePath).Msg("permission profile installed")

	return func() {
		var restoreErr error
		if hadOriginal {
			restoreErr = os.WriteFile(settingsPath, original, 0o644)
		} else {
			restoreErr = os.Remove(settingsPath)
		}
		if restoreErr != nil {
			log.Error().Err(restoreErr).Str("settings", settingsPath).Msg("failed to restore agent settings")
			return
		}
		log.Debug().Str("settings", settingsPath).Msg("agent settings restored")
	}, nil
}
