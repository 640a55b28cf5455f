package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/profilesync/internal/model"
)

var _ model.ProfileStore = (*ProfileRepository)(nil)

type ProfileRepository struct {
	db Querier
}

func NewProfileRepository(db Querier) *ProfileRepository {
	return &ProfileRepository{
		db: db,
	}
}

// CreateProfile inserts the profile. A profile that already exists for the
// owner is returned unchanged, so replaying a create is harmless.
func (r *ProfileRepository) CreateProfile(ctx context.Context, params model.CreateProfileParams) (model.Profile, error) {
	if params.OwnerID == "" {
		return model.Profile{}, model.NewRemoteError(model.CodeInvalidArgument, "create_profile", model.ErrOwnerRequired)
	}

	data, err := snapshotData(params.Snapshot)
	if err != nil {
		return model.Profile{}, model.NewRemoteError(model.CodeInvalidArgument, "create_profile", err)
	}

	query := `
		WITH ins AS (
			INSERT INTO profiles (owner_id, email, display_name, data, request_id)
			VALUES ($1, $2, $3, $4::jsonb, NULLIF($5::uuid, '00000000-0000-0000-0000-000000000000'))
			ON CONFLICT (owner_id) DO NOTHING
			RETURNING owner_id, email, display_name, data, games_logged, ai_insights_generated, goals_created, created_at, updated_at
		)
		SELECT owner_id, email, display_name, data, games_logged, ai_insights_generated, goals_created, created_at, updated_at
		FROM ins
		UNION ALL
		SELECT p.owner_id, p.email, p.display_name, p.data, p.games_logged, p.ai_insights_generated, p.goals_created, p.created_at, p.updated_at
		FROM profiles p
		WHERE NOT EXISTS (SELECT 1 FROM ins) AND p.owner_id = $1
		LIMIT 1`

	var profile model.Profile
	err = r.db.QueryRow(ctx, query,
		params.OwnerID, params.Email, params.Snapshot.DisplayName, data, params.RequestID,
	).Scan(
		&profile.OwnerID, &profile.Email, &profile.DisplayName, &profile.Data,
		&profile.Usage.GamesLogged, &profile.Usage.AIInsightsGenerated, &profile.Usage.GoalsCreated,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return model.Profile{}, remoteError("create_profile", fmt.Errorf("failed to create profile: %w", err))
	}

	return profile, nil
}

// UpdateProfile merges fields into the profile data. A displayName field
// also updates the display name column.
func (r *ProfileRepository) UpdateProfile(ctx context.Context, ownerID string, fields map[string]any) error {
	if len(fields) == 0 {
		return model.NewRemoteError(model.CodeInvalidArgument, "update_profile", fmt.Errorf("no fields to update"))
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return model.NewRemoteError(model.CodeInvalidArgument, "update_profile", fmt.Errorf("failed to marshal fields: %w", err))
	}

	var displayName *string
	if v, ok := fields["displayName"].(string); ok {
		displayName = &v
	}

	query := `UPDATE profiles
			  SET data = data || $2::jsonb,
			      display_name = COALESCE($3, display_name),
			      updated_at = now()
			  WHERE owner_id = $1`

	tag, err := r.db.Exec(ctx, query, ownerID, string(data), displayName)
	if err != nil {
		return remoteError("update_profile", fmt.Errorf("failed to update profile: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return notFound("update_profile")
	}

	return nil
}

// GetProfile returns the profile with its trial record, if any.
func (r *ProfileRepository) GetProfile(ctx context.Context, ownerID string) (model.Profile, error) {
	query := `SELECT p.owner_id, p.email, p.display_name, p.data,
			         p.games_logged, p.ai_insights_generated, p.goals_created, p.created_at, p.updated_at,
			         t.status, t.start_date, t.end_date, t.duration_days, t.request_id
			  FROM profiles p
			  LEFT JOIN trials t ON t.owner_id = p.owner_id
			  WHERE p.owner_id = $1`

	var (
		profile      model.Profile
		trialStatus  *string
		trialStart   *time.Time
		trialEnd     *time.Time
		trialDays    *int
		trialRequest *uuid.UUID
	)
	err := r.db.QueryRow(ctx, query, ownerID).Scan(
		&profile.OwnerID, &profile.Email, &profile.DisplayName, &profile.Data,
		&profile.Usage.GamesLogged, &profile.Usage.AIInsightsGenerated, &profile.Usage.GoalsCreated,
		&profile.CreatedAt, &profile.UpdatedAt,
		&trialStatus, &trialStart, &trialEnd, &trialDays, &trialRequest,
	)
	if err != nil {
		if classify(err) == model.CodeNotFound {
			return model.Profile{}, notFound("get_profile")
		}
		return model.Profile{}, remoteError("get_profile", fmt.Errorf("failed to get profile: %w", err))
	}

	if trialStatus != nil && trialStart != nil && trialEnd != nil {
		trial := model.TrialRecord{
			OwnerID:   profile.OwnerID,
			Status:    *trialStatus,
			StartDate: *trialStart,
			EndDate:   *trialEnd,
		}
		if trialDays != nil {
			trial.DurationDays = *trialDays
		}
		if trialRequest != nil {
			trial.RequestID = *trialRequest
		}
		profile.Trial = &trial
	}

	return profile, nil
}

// CreateTrialRecord inserts the trial. An existing trial for the owner is
// returned unchanged.
func (r *ProfileRepository) CreateTrialRecord(ctx context.Context, trial model.TrialRecord) (model.TrialRecord, error) {
	query := `
		WITH ins AS (
			INSERT INTO trials (owner_id, status, start_date, end_date, duration_days, request_id)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6::uuid, '00000000-0000-0000-0000-000000000000'))
			ON CONFLICT (owner_id) DO NOTHING
			RETURNING owner_id, status, start_date, end_date, duration_days
		)
		SELECT owner_id, status, start_date, end_date, duration_days FROM ins
		UNION ALL
		SELECT t.owner_id, t.status, t.start_date, t.end_date, t.duration_days
		FROM trials t
		WHERE NOT EXISTS (SELECT 1 FROM ins) AND t.owner_id = $1
		LIMIT 1`

	var saved model.TrialRecord
	err := r.db.QueryRow(ctx, query,
		trial.OwnerID, trial.Status, trial.StartDate, trial.EndDate, trial.DurationDays, trial.RequestID,
	).Scan(&saved.OwnerID, &saved.Status, &saved.StartDate, &saved.EndDate, &saved.DurationDays)
	if err != nil {
		return model.TrialRecord{}, remoteError("create_trial_record", fmt.Errorf("failed to create trial record: %w", err))
	}
	saved.RequestID = trial.RequestID

	return saved, nil
}

// snapshotData is the JSON stored in the data column for a new profile.
func snapshotData(s model.ProfileSnapshot) (string, error) {
	data := map[string]any{}
	if s.DisplayName != "" {
		data["displayName"] = s.DisplayName
	}
	if s.BirthYear != 0 {
		data["birthYear"] = s.BirthYear
	}
	if s.Locale != "" {
		data["locale"] = s.Locale
	}
	if len(s.Preferences) > 0 {
		data["preferences"] = s.Preferences
	}
	if len(s.Consent) > 0 {
		data["consent"] = s.Consent
	}

	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal profile data: %w", err)
	}
	return string(b), nil
}
