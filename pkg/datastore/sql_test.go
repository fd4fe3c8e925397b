package datastore_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/NicolasHaas/matchadmin/pkg/datastore"
	"github.com/NicolasHaas/matchadmin/pkg/model"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const (
	subjectA = uint64(76561198000000001)
	subjectB = uint64(76561198000000002)
	issuer   = uint64(76561198000000099)
)

func NewTestSqlConn(t *testing.T) (*datastore.ProviderFactory, error) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	st, err := datastore.NewProviderFactory(dbPath)
	if err != nil {
		return nil, fmt.Errorf("datastore_test: failed to open db: %w", err)
	}

	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			fmt.Printf("Error closing database: %v\n", err)
		}
	})

	return st, nil
}

func mustOpen(t *testing.T) *datastore.ProviderFactory {
	t.Helper()
	st, err := NewTestSqlConn(t)
	if err != nil {
		t.Fatalf("failed to open test connection: %v", err)
	}
	return st
}

func TestZeroTime(t *testing.T) {
	st := mustOpen(t)

	if diff := cmp.Diff(time.Time{}, st.NonTx().ZeroTime()); diff != "" {
		t.Errorf("ZeroTime mismatch (-want +got):\n%s", diff)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	first, err := datastore.NewProviderFactory(dbPath)
	if err != nil {
		t.Fatalf("NewProviderFactory: unexpected error: %v", err)
	}
	p := &model.Punishment{Kind: model.KindBan, SubjectID: subjectA, Reason: "cheating"}
	if err := first.NonTx().CreatePunishment(p); err != nil {
		t.Fatalf("CreatePunishment: unexpected error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %v", err)
	}

	second, err := datastore.NewProviderFactory(dbPath)
	if err != nil {
		t.Fatalf("NewProviderFactory (reopen): unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	list, err := second.NonTx().ListPunishments(model.KindBan, subjectA)
	if err != nil {
		t.Fatalf("ListPunishments: unexpected error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListPunishments: expected 1 record after reopen, got %d", len(list))
	}
}

func TestCreatePunishment(t *testing.T) {
	t.Parallel()

	type tcase struct {
		p         model.Punishment
		expectErr bool
	}

	tests := map[string]tcase{
		"permanent_ban": {
			p: model.Punishment{Kind: model.KindBan, SubjectID: subjectA, SubjectName: "alice", Reason: "cheating", IssuerID: issuer, IssuerName: "admin"},
		},
		"timed_mute": {
			p: model.Punishment{Kind: model.KindMute, SubjectID: subjectA, ExpiresAt: time.Now().Add(time.Hour)},
		},
		"console_issuer": {
			p: model.Punishment{Kind: model.KindBan, SubjectID: subjectA, IssuerName: "Console"},
		},
		"zero_subject": {
			p:         model.Punishment{Kind: model.KindBan},
			expectErr: true,
		},
		"invalid_kind": {
			p:         model.Punishment{Kind: model.Kind(5), SubjectID: subjectA},
			expectErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			st := mustOpen(t)

			p := tc.p
			err := st.NonTx().CreatePunishment(&p)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("CreatePunishment: expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreatePunishment: unexpected error: %v", err)
			}
			if p.ID == 0 {
				t.Fatalf("CreatePunishment: expected non-zero ID")
			}
		})
	}
}

func TestActivePunishment(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC().Truncate(time.Second)

	type tcase struct {
		records []model.Punishment
		revoke  bool // revoke the last inserted record
		kind    model.Kind
		wantID  int // 1-based index into records, 0 = none
	}

	tests := map[string]tcase{
		"no_records": {
			kind: model.KindBan,
		},
		"permanent_active": {
			records: []model.Punishment{{Kind: model.KindBan, SubjectID: subjectA}},
			kind:    model.KindBan,
			wantID:  1,
		},
		"expired_ignored": {
			records: []model.Punishment{{Kind: model.KindBan, SubjectID: subjectA, ExpiresAt: now.Add(-time.Minute)}},
			kind:    model.KindBan,
		},
		"revoked_ignored": {
			records: []model.Punishment{{Kind: model.KindBan, SubjectID: subjectA}},
			revoke:  true,
			kind:    model.KindBan,
		},
		"newest_wins": {
			records: []model.Punishment{
				{Kind: model.KindBan, SubjectID: subjectA, Reason: "old", CreatedAt: now.Add(-time.Hour)},
				{Kind: model.KindBan, SubjectID: subjectA, Reason: "new", CreatedAt: now.Add(-time.Minute)},
			},
			kind:   model.KindBan,
			wantID: 2,
		},
		"other_subject_ignored": {
			records: []model.Punishment{{Kind: model.KindBan, SubjectID: subjectB}},
			kind:    model.KindBan,
		},
		"kinds_are_separate": {
			records: []model.Punishment{{Kind: model.KindMute, SubjectID: subjectA}},
			kind:    model.KindBan,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			st := mustOpen(t)
			ds := st.NonTx()

			ids := make([]int64, len(tc.records))
			for i := range tc.records {
				p := tc.records[i]
				if p.CreatedAt.IsZero() {
					p.CreatedAt = now.Add(-time.Second)
				}
				if err := ds.CreatePunishment(&p); err != nil {
					t.Fatalf("CreatePunishment: unexpected error: %v", err)
				}
				ids[i] = p.ID
			}
			if tc.revoke {
				last := tc.records[len(tc.records)-1]
				ok, err := ds.RevokePunishment(last.Kind, ids[len(ids)-1], now, issuer, "admin")
				if err != nil || !ok {
					t.Fatalf("RevokePunishment: ok=%v err=%v", ok, err)
				}
			}

			got, err := ds.ActivePunishment(tc.kind, subjectA, now)
			if err != nil {
				t.Fatalf("ActivePunishment: unexpected error: %v", err)
			}
			if tc.wantID == 0 {
				if got != nil {
					t.Fatalf("ActivePunishment: expected none, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ActivePunishment: expected record %d, got none", ids[tc.wantID-1])
			}
			if got.ID != ids[tc.wantID-1] {
				t.Errorf("ActivePunishment: want id %d got %d", ids[tc.wantID-1], got.ID)
			}
		})
	}
}

func TestPunishmentRoundTrip(t *testing.T) {
	st := mustOpen(t)
	ds := st.NonTx()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	want := model.Punishment{
		Kind:        model.KindMute,
		SubjectID:   subjectA,
		SubjectName: "alice",
		Reason:      "spam",
		IssuerID:    issuer,
		IssuerName:  "admin",
		CreatedAt:   created,
		ExpiresAt:   created.Add(24 * time.Hour),
	}
	p := want
	if err := ds.CreatePunishment(&p); err != nil {
		t.Fatalf("CreatePunishment: unexpected error: %v", err)
	}

	got, err := ds.ActivePunishment(model.KindMute, subjectA, created.Add(time.Hour))
	if err != nil {
		t.Fatalf("ActivePunishment: unexpected error: %v", err)
	}
	if diff := cmp.Diff(&want, got, cmpopts.IgnoreFields(model.Punishment{}, "ID")); diff != "" {
		t.Errorf("ActivePunishment mismatch (-want +got):\n%s", diff)
	}
}

func TestRevokePunishment(t *testing.T) {
	st := mustOpen(t)
	ds := st.NonTx()

	p := &model.Punishment{Kind: model.KindBan, SubjectID: subjectA}
	if err := ds.CreatePunishment(p); err != nil {
		t.Fatalf("CreatePunishment: unexpected error: %v", err)
	}

	revokedAt := time.Date(2026, 5, 5, 5, 5, 5, 0, time.UTC)
	ok, err := ds.RevokePunishment(model.KindBan, p.ID, revokedAt, issuer, "admin")
	if err != nil || !ok {
		t.Fatalf("RevokePunishment: ok=%v err=%v", ok, err)
	}

	ok, err = ds.RevokePunishment(model.KindBan, p.ID, revokedAt.Add(time.Hour), subjectB, "other")
	if err != nil {
		t.Fatalf("RevokePunishment (again): unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("RevokePunishment (again): expected false for already revoked record")
	}

	ok, err = ds.RevokePunishment(model.KindBan, 9999, revokedAt, issuer, "admin")
	if err != nil || ok {
		t.Fatalf("RevokePunishment (missing): ok=%v err=%v", ok, err)
	}

	list, err := ds.ListPunishments(model.KindBan, subjectA)
	if err != nil {
		t.Fatalf("ListPunishments: unexpected error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListPunishments: expected 1 record, got %d", len(list))
	}
	if !list[0].RevokedAt.Equal(revokedAt) || list[0].RevokedByID != issuer || list[0].RevokedByName != "admin" {
		t.Errorf("RevokePunishment: first revoke stamp must be kept, got %+v", list[0])
	}
}

func TestAdmins(t *testing.T) {
	st := mustOpen(t)
	ds := st.NonTx()

	group := &model.AdminGroup{Name: "mods", Flags: []model.Flag{model.FlagKick}, Immunity: 10}
	if ok, err := ds.CreateGroup(group); err != nil || !ok {
		t.Fatalf("CreateGroup: ok=%v err=%v", ok, err)
	}

	admin := &model.Admin{SteamID: subjectA, Name: "alice", Flags: []model.Flag{model.FlagBan, model.FlagChat}, Group: "mods", CreatedByName: "Console"}
	if ok, err := ds.CreateAdmin(admin); err != nil || !ok {
		t.Fatalf("CreateAdmin: ok=%v err=%v", ok, err)
	}

	dup := &model.Admin{SteamID: subjectA, Name: "again"}
	ok, err := ds.CreateAdmin(dup)
	if err != nil {
		t.Fatalf("CreateAdmin (duplicate): unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("CreateAdmin (duplicate): expected false")
	}

	got, err := ds.GetAdmin(subjectA)
	if err != nil {
		t.Fatalf("GetAdmin: unexpected error: %v", err)
	}
	if diff := cmp.Diff(admin, got, cmpopts.IgnoreFields(model.Admin{}, "CreatedAt")); diff != "" {
		t.Errorf("GetAdmin mismatch (-want +got):\n%s", diff)
	}

	missing, err := ds.GetAdmin(subjectB)
	if err != nil || missing != nil {
		t.Fatalf("GetAdmin (missing): expected (nil, nil), got (%v, %v)", missing, err)
	}

	if ok, err := ds.SetAdminGroup(subjectA, ""); err != nil || !ok {
		t.Fatalf("SetAdminGroup: ok=%v err=%v", ok, err)
	}
	if ok, err := ds.SetAdminGroup(subjectB, "mods"); err != nil || ok {
		t.Fatalf("SetAdminGroup (missing admin): ok=%v err=%v", ok, err)
	}

	admins, err := ds.ListAdmins()
	if err != nil {
		t.Fatalf("ListAdmins: unexpected error: %v", err)
	}
	if len(admins) != 1 || admins[0].Group != "" {
		t.Fatalf("ListAdmins: expected one admin without group, got %+v", admins)
	}

	if ok, err := ds.DeleteAdmin(subjectA); err != nil || !ok {
		t.Fatalf("DeleteAdmin: ok=%v err=%v", ok, err)
	}
	if ok, err := ds.DeleteAdmin(subjectA); err != nil || ok {
		t.Fatalf("DeleteAdmin (again): ok=%v err=%v", ok, err)
	}
}

func TestCreateGroup(t *testing.T) {
	t.Parallel()

	type tcase struct {
		group     model.AdminGroup
		expectOK  bool
		expectErr bool
	}

	tests := map[string]tcase{
		"valid": {
			group:    model.AdminGroup{Name: "#admins", Flags: []model.Flag{model.FlagRoot}, Immunity: 100},
			expectOK: true,
		},
		"no_flags": {
			group:    model.AdminGroup{Name: "vip"},
			expectOK: true,
		},
		"empty_name": {
			group:     model.AdminGroup{Name: ""},
			expectErr: true,
		},
		"injection_name": {
			group:     model.AdminGroup{Name: "'; DROP TABLE admins; --"},
			expectErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			st := mustOpen(t)

			g := tc.group
			ok, err := st.NonTx().CreateGroup(&g)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("CreateGroup: expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateGroup: unexpected error: %v", err)
			}
			if ok != tc.expectOK {
				t.Fatalf("CreateGroup: want ok=%v got %v", tc.expectOK, ok)
			}

			again := tc.group
			ok, err = st.NonTx().CreateGroup(&again)
			if err != nil || ok {
				t.Fatalf("CreateGroup (duplicate): ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestDeleteGroupClearsAdmins(t *testing.T) {
	st := mustOpen(t)

	if ok, err := st.NonTx().CreateGroup(&model.AdminGroup{Name: "mods", Flags: []model.Flag{model.FlagKick}}); err != nil || !ok {
		t.Fatalf("CreateGroup: ok=%v err=%v", ok, err)
	}
	admin := &model.Admin{SteamID: subjectA, Name: "alice", Flags: []model.Flag{model.FlagBan}, Group: "mods"}
	if ok, err := st.NonTx().CreateAdmin(admin); err != nil || !ok {
		t.Fatalf("CreateAdmin: ok=%v err=%v", ok, err)
	}

	tx, err := st.Tx(context.Background())
	if err != nil {
		t.Fatalf("Tx: unexpected error: %v", err)
	}
	ok, err := tx.DeleteGroup("mods")
	if err != nil || !ok {
		_ = tx.Rollback()
		t.Fatalf("DeleteGroup: ok=%v err=%v", ok, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: unexpected error: %v", err)
	}

	got, err := st.NonTx().GetAdmin(subjectA)
	if err != nil || got == nil {
		t.Fatalf("GetAdmin: got=%v err=%v", got, err)
	}
	if got.Group != "" {
		t.Errorf("DeleteGroup: expected admin group cleared, got %q", got.Group)
	}
	if diff := cmp.Diff([]model.Flag{model.FlagBan}, got.Flags); diff != "" {
		t.Errorf("DeleteGroup: individual flags changed (-want +got):\n%s", diff)
	}

	ok, err = st.NonTx().DeleteGroup("mods")
	if err != nil || ok {
		t.Fatalf("DeleteGroup (missing): ok=%v err=%v", ok, err)
	}
}

func TestTxRollback(t *testing.T) {
	st := mustOpen(t)

	tx, err := st.Tx(context.Background())
	if err != nil {
		t.Fatalf("Tx: unexpected error: %v", err)
	}
	if ok, err := tx.CreateGroup(&model.AdminGroup{Name: "temp"}); err != nil || !ok {
		t.Fatalf("CreateGroup: ok=%v err=%v", ok, err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: unexpected error: %v", err)
	}

	g, err := st.NonTx().GetGroup("temp")
	if err != nil {
		t.Fatalf("GetGroup: unexpected error: %v", err)
	}
	if g != nil {
		t.Fatalf("GetGroup: expected rolled back group to be absent")
	}
}

func TestAudit(t *testing.T) {
	st := mustOpen(t)
	ds := st.NonTx()

	entries := []model.AuditEntry{
		{Action: model.ActionBan, IssuerID: issuer, IssuerName: "admin", SubjectID: subjectA, SubjectName: "alice", Details: "Duration: permanent, Reason: cheating"},
		{Action: model.ActionPause, IssuerName: "Console"},
		{Action: model.ActionAddGroup, IssuerID: issuer, IssuerName: "admin", Details: "Group: mods, Flags: @css/kick"},
	}
	for i := range entries {
		if err := ds.CreateAuditEntry(&entries[i]); err != nil {
			t.Fatalf("CreateAuditEntry: unexpected error: %v", err)
		}
	}

	if err := ds.CreateAuditEntry(&model.AuditEntry{}); err == nil {
		t.Fatalf("CreateAuditEntry: expected error for empty action")
	}

	got, err := ds.ListAudit(2)
	if err != nil {
		t.Fatalf("ListAudit: unexpected error: %v", err)
	}
	want := []model.AuditEntry{entries[2], entries[1]}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(model.AuditEntry{}, "ID", "CreatedAt")); diff != "" {
		t.Errorf("ListAudit mismatch (-want +got):\n%s", diff)
	}
}
