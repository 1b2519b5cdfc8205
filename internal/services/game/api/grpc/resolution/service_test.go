package resolution

import (
	"bytes"
	"context"
	"log"
	"net"
	"path/filepath"
	"sync"
	"testing"

	apperrors "github.com/cortonemo/narequenta-vtt/internal/platform/errors"
	domain "github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/journal"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/storage/memory"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type recordingNotifier struct {
	mu      sync.Mutex
	reports []domain.Report
	errs    []error
}

func (n *recordingNotifier) PublishReport(report domain.Report) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, report)
}

func (n *recordingNotifier) PublishError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reports), len(n.errs)
}

type harness struct {
	client   *Client
	store    *memory.Store
	notifier *recordingNotifier
	journal  string
}

func startServer(t *testing.T) harness {
	t.Helper()
	store := memory.New()
	quiet := log.New(&bytes.Buffer{}, "", 0)
	dir := filepath.Join(t.TempDir(), "journal")
	writer, err := journal.Open(dir)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	notifier := &recordingNotifier{}
	processor := domain.NewProcessor(store, store, domain.WithLedger(store), domain.WithLogger(quiet))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := grpc.NewServer()
	RegisterResolutionServiceServer(server, NewService(store, processor,
		WithJournal(writer), WithNotifier(notifier), WithLogger(quiet)))
	go func() { _ = server.Serve(listener) }()

	conn, err := grpc.NewClient(listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
		_ = writer.Close()
	})
	return harness{client: NewClient(conn), store: store, notifier: notifier, journal: dir}
}

func seed(t *testing.T, h harness) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.client.PutEntity(ctx, narequenta.Entity{
		ID:        "hero",
		Name:      "Aria",
		Essences:  map[string]narequenta.Essence{"vitalis": {Value: 40, Max: 80}, "motus": {Value: 30, Max: 55}},
		Resources: &narequenta.Resources{HP: narequenta.Resource{Value: 18, Max: 18}},
	}); err != nil {
		t.Fatalf("put hero: %v", err)
	}
	if _, err := h.client.PutEntity(ctx, narequenta.Entity{
		ID:        "goblin",
		Kind:      narequenta.KindNPC,
		Resources: &narequenta.Resources{HP: narequenta.Resource{Value: 7, Max: 7}},
	}); err != nil {
		t.Fatalf("put goblin: %v", err)
	}
	if _, err := h.client.PutPlacement(ctx, narequenta.Placement{ID: "tok-1", EntityID: "goblin"}); err != nil {
		t.Fatalf("put placement: %v", err)
	}
}

func TestPutEntityReturnsDerivedSheet(t *testing.T) {
	h := startServer(t)
	sheet, err := h.client.PutEntity(context.Background(), narequenta.Entity{
		ID:       "hero",
		Essences: map[string]narequenta.Essence{"vitalis": {Value: 40, Max: 120}},
	})
	if err != nil {
		t.Fatalf("put entity: %v", err)
	}
	vitalis := sheet.Essences["vitalis"]
	if vitalis.Max != 100 || vitalis.Tier != 0 || vitalis.DiceString != "0" {
		t.Fatalf("vitalis = %+v", vitalis)
	}
	if sheet.Kind != narequenta.KindCharacter || !sheet.Derived {
		t.Fatalf("sheet = %+v", sheet)
	}
}

func TestGetSheetAndRollData(t *testing.T) {
	h := startServer(t)
	seed(t, h)
	ctx := context.Background()

	sheet, err := h.client.GetSheet(ctx, "entity:hero")
	if err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	if sheet.Tier != 4 || sheet.Essences["motus"].Tier != 4 || sheet.Essences["vitalis"].Tier != 2 {
		t.Fatalf("sheet = %+v", sheet)
	}

	data, err := h.client.GetRollData(ctx, "hero")
	if err != nil {
		t.Fatalf("get roll data: %v", err)
	}
	if data["initiative"] != "1d20 + 0.40" {
		t.Fatalf("initiative = %v", data["initiative"])
	}
	if _, ok := data["vitalis"].(map[string]any); !ok {
		t.Fatalf("roll data = %v, want vitalis shorthand", data)
	}
}

func TestGetSheetUnknownRefIsNotFound(t *testing.T) {
	h := startServer(t)
	_, err := h.client.GetSheet(context.Background(), "placement:ghost")
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %v, want NotFound", status.Code(err))
	}
}

func TestApplyResolutionEndToEnd(t *testing.T) {
	h := startServer(t)
	seed(t, h)
	ctx := context.Background()

	report, err := h.client.ApplyResolution(ctx, `{"payloadId":"res-1","attackerRef":"hero","essenceKey":"vitalis","attritionCost":12,"targets":[{"ref":"tok-1","damage":9},{"ref":"ghost","damage":1}]}`)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if report.PayloadID != "res-1" || report.TargetsDamaged != 1 || len(report.Defeated) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Attrition.After != 28 {
		t.Fatalf("attrition after = %v, want 28", report.Attrition.After)
	}
	if len(report.WarningsOf(domain.WarningTargetNotFound)) != 1 {
		t.Fatalf("warnings = %+v", report.Warnings)
	}
	if reports, _ := h.notifier.counts(); reports != 1 {
		t.Fatalf("published reports = %d, want 1", reports)
	}

	files, err := journal.ListFiles(h.journal)
	if err != nil || len(files) != 1 {
		t.Fatalf("journal files = %v, %v", files, err)
	}

	_, err = h.client.ApplyResolution(ctx, `{"payloadId":"res-1","attackerRef":"hero","essenceKey":"vitalis","attritionCost":12}`)
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("replay code = %v, want FailedPrecondition", status.Code(err))
	}
	if _, errs := h.notifier.counts(); errs != 1 {
		t.Fatalf("published errors = %d, want 1", errs)
	}
	hero, err := h.store.GetEntity(ctx, "hero")
	if err != nil {
		t.Fatalf("get hero: %v", err)
	}
	if hero.Essences["vitalis"].Value != 28 {
		t.Fatalf("vitalis = %v, want 28 after replay rejected", hero.Essences["vitalis"].Value)
	}
}

func TestApplyResolutionMalformedCarriesDetails(t *testing.T) {
	h := startServer(t)
	_, err := h.client.WithLocale("en-US").ApplyResolution(context.Background(), `{"attackerRef":"hero"`)
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.InvalidArgument {
		t.Fatalf("status = %v", err)
	}
	var reason string
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			reason = info.GetReason()
		}
	}
	if reason != string(apperrors.CodeResolutionMalformedPayload) {
		t.Fatalf("error info reason = %q", reason)
	}
	if _, errs := h.notifier.counts(); errs != 1 {
		t.Fatal("expected parse error to be published")
	}
}

func TestPutEntityRejectsEmptyID(t *testing.T) {
	h := startServer(t)
	_, err := h.client.PutEntity(context.Background(), narequenta.Entity{Name: "nobody"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestPutPlacementRequiresEntity(t *testing.T) {
	h := startServer(t)
	_, err := h.client.PutPlacement(context.Background(), narequenta.Placement{ID: "tok-9", EntityID: "nobody"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %v, want NotFound", status.Code(err))
	}
}
