package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docmatch/constants"
	"github.com/joseph-ayodele/docmatch/internal/catalog"
	"github.com/joseph-ayodele/docmatch/internal/common"
	"github.com/joseph-ayodele/docmatch/internal/export"
	"github.com/joseph-ayodele/docmatch/internal/extract"
	"github.com/joseph-ayodele/docmatch/internal/ingest"
	"github.com/joseph-ayodele/docmatch/internal/match"
	"github.com/joseph-ayodele/docmatch/internal/ocr"
	"github.com/joseph-ayodele/docmatch/internal/pipeline"
	"github.com/joseph-ayodele/docmatch/internal/repository"
)

func testService(t *testing.T, withStore bool) *ResolverService {
	t.Helper()
	ex := extract.New(nil)
	rows := []map[string]any{
		{common.FieldDeliveryNote: "4711234", "MBLNR": 4500001234, "MJAHR": 2023},
	}
	cat, err := catalog.Build(rows, catalog.Schema{
		IdentifierField: common.FieldDeliveryNote, KeyField: "MBLNR", YearField: "MJAHR",
	}, ex, nil)
	if err != nil {
		t.Fatal(err)
	}
	m, err := match.New(match.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	d := pipeline.New(cat, ex, m, ocr.NewExtractor(ocr.Config{}, nil, nil), pipeline.DefaultOptions(), nil)

	var runs repository.RunRepository
	if withStore {
		db, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "runs.db"), nil)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = db.Close() })
		runs = repository.NewRunRepository(db, nil)
		if err := runs.Migrate(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	return NewResolverService(d, runs, nil)
}

func dial(t *testing.T, svc ResolverServer) *ResolverClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterResolverServer(s, svc)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewResolverClient(conn)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestResolve(t *testing.T) {
	c := dial(t, testService(t, true))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := mustStruct(t, map[string]any{"pages": []any{
		map[string]any{"index": 2, "text": "nothing"},
		map[string]any{"index": 1, "text": "Liefernummer: 4711234"},
	}})
	resp, err := c.Resolve(ctx, req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out := resp.AsMap()
	pages := out["pages"].([]any)
	first := pages[0].(map[string]any)
	if first["page"] != float64(1) || first["identity_key"] != "4500001234_2023" || first["status"] != string(constants.StatusMatched) {
		t.Errorf("page 1 = %v", first)
	}
	second := pages[1].(map[string]any)
	if second["identity_key"] != constants.NoneFound {
		t.Errorf("page 2 = %v", second)
	}
	summary := out["summary"].(map[string]any)
	if summary["match_rate"] != 0.5 {
		t.Errorf("summary = %v", summary)
	}

	runs, err := c.ListRuns(ctx, &structpb.Struct{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	list := runs.AsMap()["runs"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["run_id"] != out["run_id"] {
		t.Errorf("runs = %v", list)
	}
}

func TestResolveMinScoreOverride(t *testing.T) {
	c := dial(t, testService(t, false))
	req := mustStruct(t, map[string]any{
		"pages":     []any{map[string]any{"index": 1, "text": "Liefernummer: 4711234"}},
		"min_score": 50,
	})
	resp, err := c.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	page := resp.AsMap()["pages"].([]any)[0].(map[string]any)
	if page["status"] != string(constants.StatusUnresolved) {
		t.Errorf("page = %v, want unresolved under min_score 50", page)
	}
}

func TestResolveErrors(t *testing.T) {
	c := dial(t, testService(t, false))
	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"no pages", func() error {
			_, err := c.Resolve(context.Background(), &structpb.Struct{})
			return err
		}, codes.InvalidArgument},
		{"duplicate index", func() error {
			_, err := c.Resolve(context.Background(), mustStruct(t, map[string]any{"pages": []any{
				map[string]any{"index": 1, "text": "a"}, map[string]any{"index": 1, "text": "b"},
			}}))
			return err
		}, codes.InvalidArgument},
		{"negative min score", func() error {
			_, err := c.Resolve(context.Background(), mustStruct(t, map[string]any{
				"pages": []any{map[string]any{"index": 1, "text": "a"}}, "min_score": -1,
			}))
			return err
		}, codes.InvalidArgument},
		{"missing path", func() error {
			_, err := c.ResolveFile(context.Background(), &structpb.Struct{})
			return err
		}, codes.InvalidArgument},
		{"unsupported file", func() error {
			p := filepath.Join(t.TempDir(), "batch.docx")
			if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := c.ResolveFile(context.Background(), mustStruct(t, map[string]any{"path": p}))
			return err
		}, codes.InvalidArgument},
		{"no run store", func() error {
			_, err := c.ListRuns(context.Background(), &structpb.Struct{})
			return err
		}, codes.FailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.Code(tt.call()); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.txt")
	if err := os.WriteFile(path, []byte("Liefernummer: 4711234\fLiefernummer: 4711234\f"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := dial(t, testService(t, false))
	resp, err := c.ResolveFile(context.Background(), mustStruct(t, map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("ResolveFile: %v", err)
	}
	out := resp.AsMap()
	if out["source"] != path {
		t.Errorf("source = %v", out["source"])
	}
	docs := out["documents"].([]any)
	if len(docs) != 1 {
		t.Errorf("documents = %v, want both pages in one document", docs)
	}
}

func TestInbox(t *testing.T) {
	root := t.TempDir()
	outDir := t.TempDir()
	svc := testService(t, true)
	inbox := &Inbox{Service: svc, Export: export.NewService(nil), OutDir: outDir}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- inbox.Run(ctx, ingest.WatchConfig{Roots: []string{root}, Exts: []string{"txt"}})
	}()

	// give the watcher time to register before the file lands
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(root, "batch.txt"), []byte("Liefernummer: 4711234"), 0o644); err != nil {
		t.Fatal(err)
	}

	report := filepath.Join(outDir, "batch.docmatch.json")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if info, err := os.Stat(report); err == nil && info.Size() > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no report written")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	runs, err := svc.runs.ListRuns(context.Background())
	if err != nil || len(runs) == 0 {
		t.Errorf("runs = %v, %v", runs, err)
	}
}
