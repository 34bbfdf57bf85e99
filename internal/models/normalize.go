package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Normalize coerces a decoded event into its canonical shape. Loosely typed
// collections become empty (never nil), derived fields are recomputed and unknown
// enum values are rejected.
func Normalize(e *Event) error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}
	if e.Status == "" {
		e.Status = EventStatusPending
	}
	e.Status = EventStatus(strings.ToUpper(string(e.Status)))
	if !e.Status.Valid() {
		return fmt.Errorf("unknown event status %q", e.Status)
	}
	if e.Details.Format == "" {
		e.Details.Format = EventFormatIndividual
	}
	e.Details.Format = EventFormat(strings.ToUpper(string(e.Details.Format)))
	if !e.Details.Format.Valid() {
		return fmt.Errorf("unknown event format %q", e.Details.Format)
	}

	e.Details.Organizers = uniqueStrings(e.Details.Organizers)
	e.Participants = uniqueStrings(e.Participants)

	teams := make([]Team, 0, len(e.Teams))
	for _, team := range e.Teams {
		team.TeamName = strings.TrimSpace(team.TeamName)
		team.Members = uniqueStrings(team.Members)
		if team.TeamLead != "" && !team.HasMember(team.TeamLead) {
			team.TeamLead = ""
		}
		if team.TeamLead == "" && len(team.Members) > 0 {
			team.TeamLead = team.Members[0]
		}
		teams = append(teams, team)
	}
	e.Teams = teams
	e.RecomputeTeamMemberFlatList()

	if e.Criteria == nil {
		e.Criteria = []Criterion{}
	}
	for i := range e.Criteria {
		if e.Criteria[i].Votes == nil {
			e.Criteria[i].Votes = map[string]string{}
		}
	}
	sort.SliceStable(e.Criteria, func(i, j int) bool {
		return e.Criteria[i].ConstraintIndex < e.Criteria[j].ConstraintIndex
	})
	if e.Submissions == nil {
		e.Submissions = []Submission{}
	}
	if e.OrganizerRatings == nil {
		e.OrganizerRatings = map[string]OrganizerRating{}
	}
	if e.BestPerformerSelections == nil {
		e.BestPerformerSelections = map[string]string{}
	}
	if e.Winners == nil {
		e.Winners = Winners{}
	}
	for key, ids := range e.Winners {
		ids = uniqueStrings(ids)
		if len(ids) == 0 {
			delete(e.Winners, key)
			continue
		}
		e.Winners[key] = ids
	}
	return nil
}

// CoerceStringMap turns an absent or malformed ballot map into a string map.
// Entries whose value is not a string are dropped.
func CoerceStringMap(raw interface{}) map[string]string {
	out := map[string]string{}
	switch typed := raw.(type) {
	case map[string]string:
		for k, v := range typed {
			if k != "" && v != "" {
				out[k] = v
			}
		}
	case map[string]interface{}:
		for k, v := range typed {
			if s, ok := v.(string); ok && k != "" && s != "" {
				out[k] = s
			}
		}
	}
	return out
}

// CoerceWinners accepts scalar or list winner values.
func CoerceWinners(raw interface{}) Winners {
	out := Winners{}
	entries, ok := raw.(map[string]interface{})
	if !ok {
		if typed, ok := raw.(map[string][]string); ok {
			for k, v := range typed {
				if ids := uniqueStrings(v); len(ids) > 0 {
					out[k] = ids
				}
			}
		}
		return out
	}
	for key, value := range entries {
		var ids []string
		switch typed := value.(type) {
		case string:
			ids = []string{typed}
		case []string:
			ids = typed
		case []interface{}:
			for _, item := range typed {
				if s, ok := item.(string); ok {
					ids = append(ids, s)
				}
			}
		}
		if ids = uniqueStrings(ids); len(ids) > 0 {
			out[key] = ids
		}
	}
	return out
}

// CoerceOrganizerRatings accepts ratings stored either keyed by user or as a list.
func CoerceOrganizerRatings(raw interface{}) map[string]OrganizerRating {
	out := map[string]OrganizerRating{}
	switch typed := raw.(type) {
	case map[string]interface{}:
		for userID, value := range typed {
			if rating, ok := decodeRating(value); ok {
				if rating.UserID == "" {
					rating.UserID = userID
				}
				out[rating.UserID] = rating
			}
		}
	case []interface{}:
		for _, value := range typed {
			if rating, ok := decodeRating(value); ok && rating.UserID != "" {
				out[rating.UserID] = rating
			}
		}
	}
	return out
}

func decodeRating(value interface{}) (OrganizerRating, bool) {
	fields, ok := value.(map[string]interface{})
	if !ok {
		return OrganizerRating{}, false
	}
	rating := OrganizerRating{}
	if s, ok := fields["userId"].(string); ok {
		rating.UserID = s
	}
	switch n := fields["rating"].(type) {
	case int64:
		rating.Rating = int(n)
	case int:
		rating.Rating = n
	case float64:
		rating.Rating = int(n)
	}
	if rating.Rating < 1 || rating.Rating > 5 {
		return OrganizerRating{}, false
	}
	if s, ok := fields["feedback"].(string); ok {
		rating.Feedback = s
	}
	switch ts := fields["ratedAt"].(type) {
	case time.Time:
		rating.RatedAt = ts
	case string:
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			rating.RatedAt = parsed
		}
	}
	return rating, true
}

// RatingsToRaw renders ratings in the keyed-map layout used for storage.
func RatingsToRaw(ratings map[string]OrganizerRating) map[string]interface{} {
	out := make(map[string]interface{}, len(ratings))
	for userID, rating := range ratings {
		entry := map[string]interface{}{
			"userId":  userID,
			"rating":  int64(rating.Rating),
			"ratedAt": rating.RatedAt,
		}
		if rating.Feedback != "" {
			entry["feedback"] = rating.Feedback
		}
		out[userID] = entry
	}
	return out
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
