package documents

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/serviceerr"
	"golang.org/x/sync/errgroup"
)

func TestGetCurrentReturnsDefaultShapeBeforeFirstSave(t *testing.T) {
	service, _ := newTestService(t)

	snapshot, err := service.GetCurrent(context.Background(), TypePositioning)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.VersionNumber != 0 || snapshot.CreatedAt != nil {
		t.Fatalf("expected no version yet, got %d (%v)", snapshot.VersionNumber, snapshot.CreatedAt)
	}
	if _, ok := snapshot.Payload.(*PositioningDocument); !ok {
		t.Fatalf("expected default positioning payload, got %T", snapshot.Payload)
	}
}

func TestSaveVersionAppendsSequentialNumbers(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	first, err := service.SaveVersion(ctx, SaveRequest{DocumentType: TypePositioning, Payload: positioningWithHeadline("v1"), ChangeNotes: "initial"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.SaveVersion(ctx, SaveRequest{DocumentType: TypePositioning, Payload: positioningWithHeadline("v2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	other, err := service.SaveVersion(ctx, SaveRequest{DocumentType: TypeCompetitors, Payload: &BattlecardDocument{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.VersionNumber != 1 || second.VersionNumber != 2 {
		t.Fatalf("expected versions 1 and 2, got %d and %d", first.VersionNumber, second.VersionNumber)
	}
	if other.VersionNumber != 1 {
		t.Fatalf("version numbers are scoped per document type, got %d", other.VersionNumber)
	}
	if second.ChangeNotes != nil {
		t.Fatalf("blank change notes should be stored as null")
	}

	snapshot, err := service.GetCurrent(ctx, TypePositioning)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.VersionNumber != 2 {
		t.Fatalf("current should be the highest version, got %d", snapshot.VersionNumber)
	}
	if snapshot.Payload.(*PositioningDocument).Headline != "v2" {
		t.Fatalf("unexpected current payload %+v", snapshot.Payload)
	}
}

func TestSaveVersionConcurrentWritersGetContiguousNumbers(t *testing.T) {
	service, db := newTestService(t)
	const writers = 12

	group, ctx := errgroup.WithContext(context.Background())
	for writer := 0; writer < writers; writer++ {
		group.Go(func() error {
			_, err := service.SaveVersion(ctx, SaveRequest{DocumentType: TypeCompetitors, Payload: &BattlecardDocument{}})
			return err
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent save failed: %v", err)
	}

	var numbers []int64
	if err := db.Model(&Version{}).Where("document_type = ?", TypeCompetitors).Pluck("version_number", &numbers).Error; err != nil {
		t.Fatalf("failed to load versions: %v", err)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	if len(numbers) != writers {
		t.Fatalf("expected %d versions, got %d", writers, len(numbers))
	}
	for index, number := range numbers {
		if number != int64(index+1) {
			t.Fatalf("expected contiguous numbers 1..%d, got %v", writers, numbers)
		}
	}
}

func TestSaveVersionValidatesAtBoundary(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	testCases := []struct {
		name    string
		request SaveRequest
		wantErr error
	}{
		{name: "unknown-type", request: SaveRequest{DocumentType: Type("pricing"), Payload: &BattlecardDocument{}}, wantErr: ErrUnknownDocumentType},
		{name: "nil-payload", request: SaveRequest{DocumentType: TypePositioning}, wantErr: ErrInvalidPayload},
		{name: "type-mismatch", request: SaveRequest{DocumentType: TypePositioning, Payload: &BattlecardDocument{}}, wantErr: ErrPayloadTypeMismatch},
		{name: "invalid-fields", request: SaveRequest{DocumentType: TypeCompetitors, Payload: &BattlecardDocument{Competitors: []CompetitorCard{{ID: "acme"}}}}, wantErr: ErrInvalidPayload},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := service.SaveVersion(ctx, testCase.request)
			if !errors.Is(err, testCase.wantErr) {
				t.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
			if serviceerr.KindOf(err) != serviceerr.KindValidation {
				t.Fatalf("expected validation kind, got %s", serviceerr.KindOf(err))
			}
		})
	}
}

func TestSaveRawRejectsMalformedJSON(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.SaveRaw(context.Background(), TypePositioning, []byte(`{"headline":`), "", "user-1")
	if serviceerr.KindOf(err) != serviceerr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if serviceerr.CodeOf(err) != "documents.save_version.invalid_payload" {
		t.Fatalf("unexpected code %q", serviceerr.CodeOf(err))
	}
}

func TestSaveRawStoresAnonymousInsightsWithoutNames(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	raw := []byte(`{"headline":"Own the category","contributedInsights":[` +
		`{"contributionId":"c-1","contributorName":"Alice","isAnonymous":true,"content":"Quiet intel","contributionType":"intel"}]}`)
	saved, err := service.SaveRaw(ctx, TypePositioning, raw, "", "user-1")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	var stored Version
	if err := db.Where("id = ?", saved.ID).Take(&stored).Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if strings.Contains(string(stored.Data), "Alice") {
		t.Fatalf("stored data leaks the anonymous contributor: %s", stored.Data)
	}

	snapshot, err := service.GetCurrent(ctx, TypePositioning)
	if err != nil {
		t.Fatalf("get current failed: %v", err)
	}
	insights := snapshot.Payload.Insights()
	if len(insights) != 1 || !insights[0].IsAnonymous || insights[0].ContributorName != nil {
		t.Fatalf("unexpected insights %+v", insights)
	}
}

func TestListVersionsNewestFirstWithoutPayload(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	for _, headline := range []string{"a", "b", "c"} {
		if _, err := service.SaveVersion(ctx, SaveRequest{DocumentType: TypePositioning, Payload: positioningWithHeadline(headline), ChangeNotes: "edit " + headline, CreatedBy: "user-1"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	summaries, err := service.ListVersions(ctx, TypePositioning)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}
	if summaries[0].VersionNumber != 3 || summaries[2].VersionNumber != 1 {
		t.Fatalf("expected newest first, got %d..%d", summaries[0].VersionNumber, summaries[2].VersionNumber)
	}
	if summaries[0].ChangeNotes == nil || *summaries[0].ChangeNotes != "edit c" {
		t.Fatalf("unexpected change notes %v", summaries[0].ChangeNotes)
	}
	if summaries[0].CreatedBy == nil || *summaries[0].CreatedBy != "user-1" {
		t.Fatalf("unexpected author %v", summaries[0].CreatedBy)
	}
}

func TestGetVersionNotFound(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.GetVersion(context.Background(), TypePositioning, 7)
	if !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if serviceerr.KindOf(err) != serviceerr.KindNotFound {
		t.Fatalf("expected not_found kind, got %s", serviceerr.KindOf(err))
	}

	_, err = service.GetVersion(context.Background(), TypePositioning, 0)
	if !errors.Is(err, ErrInvalidVersionNumber) {
		t.Fatalf("expected invalid version number, got %v", err)
	}
}

func TestRestoreVersionIsAdditive(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	if _, err := service.SaveVersion(ctx, SaveRequest{DocumentType: TypePositioning, Payload: positioningWithHeadline("original")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.SaveVersion(ctx, SaveRequest{DocumentType: TypePositioning, Payload: positioningWithHeadline("rewrite")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, err := service.GetVersion(ctx, TypePositioning, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored, err := service.RestoreVersion(ctx, TypePositioning, 1, "admin-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.VersionNumber != 3 {
		t.Fatalf("restore should append max+1, got %d", restored.VersionNumber)
	}
	if restored.ChangeNotes == nil || *restored.ChangeNotes != "Restored from version 1" {
		t.Fatalf("unexpected restore notes %v", restored.ChangeNotes)
	}

	after, err := service.GetVersion(ctx, TypePositioning, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("restore must not modify the source version")
	}
	sourcePayload, _ := after.Payload()
	restoredPayload, _ := restored.Payload()
	if !reflect.DeepEqual(sourcePayload, restoredPayload) {
		t.Fatalf("restored data should deep-equal the source data")
	}

	if _, err := service.RestoreVersion(ctx, TypePositioning, 42, "admin-1"); !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("expected not found for missing source, got %v", err)
	}
}

func TestZeroServiceReportsMissingDatabase(t *testing.T) {
	service := &Service{}
	_, err := service.GetCurrent(context.Background(), TypePositioning)
	if serviceerr.CodeOf(err) != "documents.get_current.missing_database" {
		t.Fatalf("unexpected code %q", serviceerr.CodeOf(err))
	}
}
