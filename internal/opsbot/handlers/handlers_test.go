package handlers_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bdobrica/opsbot/internal/opsbot/commands"
	"github.com/bdobrica/opsbot/internal/opsbot/compute"
	"github.com/bdobrica/opsbot/internal/opsbot/config"
	"github.com/bdobrica/opsbot/internal/opsbot/handlers"
	"github.com/bdobrica/opsbot/internal/opsbot/store"
)

// fakeProvider is an in-memory compute.Provider for handler tests.
type fakeProvider struct {
	instances []compute.Instance
	createErr error
	modifyErr error

	created  []compute.CreateSpec
	modified []string // "<op> <id>"
}

func (f *fakeProvider) Create(_ context.Context, spec compute.CreateSpec) (compute.Instance, error) {
	f.created = append(f.created, spec)
	if f.createErr != nil {
		return compute.Instance{}, f.createErr
	}
	name := spec.Name
	if name == "" {
		name = spec.OSName + "-abc123"
	}
	return compute.Instance{
		ID:        "0123456789abcdef",
		Name:      name,
		OSName:    spec.OSName,
		Size:      spec.Size,
		State:     compute.StateRunning,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeProvider) List(_ context.Context, filter compute.ListFilter) ([]compute.Instance, error) {
	var out []compute.Instance
	for _, inst := range f.instances {
		if filter.Matches(inst) {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *fakeProvider) Start(_ context.Context, id string) error     { return f.modify("start", id) }
func (f *fakeProvider) Stop(_ context.Context, id string) error      { return f.modify("stop", id) }
func (f *fakeProvider) Terminate(_ context.Context, id string) error { return f.modify("terminate", id) }

func (f *fakeProvider) modify(op, id string) error {
	f.modified = append(f.modified, op+" "+id)
	return f.modifyErr
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "opsbot-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db file: %v", err)
	}
	f.Close()

	s, err := store.New(f.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testConfig() *config.Config {
	return &config.Config{
		Images: map[string]string{
			"fedora": "registry.fedoraproject.org/fedora:42",
			"centos": "quay.io/centos/centos:stream9",
		},
		DefaultImage: "fedora",
		Sizes: []config.Size{
			{Name: "small", CPUs: 1, Memory: "1g"},
			{Name: "large", CPUs: 4, Memory: "8g"},
		},
		DefaultSize: "small",
		TeamLinks: []config.TeamLink{
			{Title: "Runbook", URL: "https://wiki.example.com/runbook"},
		},
	}
}

type output struct {
	messages []string
}

func (o *output) fn(msg string) { o.messages = append(o.messages, msg) }

func (o *output) last(t *testing.T) string {
	t.Helper()
	if len(o.messages) == 0 {
		t.Fatal("handler produced no output")
	}
	return o.messages[len(o.messages)-1]
}

func TestRegister_DeclaresAllCommands(t *testing.T) {
	h := handlers.New(newTestStore(t), &fakeProvider{}, testConfig())
	reg := commands.NewRegistry()
	h.Register(reg)

	for _, key := range []string{
		"hello", "hi",
		"version", "ping",
		"list-vms", "vms", "list-vm",
		"create-vm", "vm-create",
		"modify-vm", "vm-modify",
		"list-team-links", "links", "team-links",
		"audit-tail",
	} {
		if _, ok := reg.Lookup(key); !ok {
			t.Errorf("command %q not registered", key)
		}
	}
}

func TestChoiceProducers(t *testing.T) {
	h := handlers.New(newTestStore(t), &fakeProvider{}, testConfig())
	reg := commands.NewRegistry()
	h.Register(reg)
	help := commands.NewHelp(reg)

	got := help.FormatCommand("create-vm", true)
	if !strings.Contains(got, "(Options: centos, fedora)") {
		t.Errorf("os_name choices should come from the image map\n---\n%s", got)
	}
	if !strings.Contains(got, "(Default: fedora)") {
		t.Errorf("os_name default should come from the config\n---\n%s", got)
	}
	if !strings.Contains(got, "(Options: small, large)") {
		t.Errorf("size choices should come from the size catalogue\n---\n%s", got)
	}
}

func TestChoiceProducers_NoConfigDegrades(t *testing.T) {
	h := handlers.New(newTestStore(t), &fakeProvider{}, nil)
	reg := commands.NewRegistry()
	h.Register(reg)
	help := commands.NewHelp(reg)

	got := help.FormatCommand("create-vm", true)
	if !strings.Contains(got, "*create-vm*") {
		t.Errorf("help should still render without config\n---\n%s", got)
	}
	if !strings.Contains(got, commands.ErrValueSentinel) {
		t.Errorf("config-backed choices should degrade to the sentinel\n---\n%s", got)
	}
}

func TestHandleHello(t *testing.T) {
	h := handlers.New(newTestStore(t), nil, nil)
	var out output
	h.HandleHello(context.Background(), out.fn, "U42", commands.Params{})

	if got := out.last(t); !strings.Contains(got, "Hello <@U42>!") {
		t.Errorf("reply = %q", got)
	}
}

func TestHandlePing_WritesAudit(t *testing.T) {
	s := newTestStore(t)
	h := handlers.New(s, nil, nil)
	var out output
	h.HandlePing(context.Background(), out.fn, "@alice:example.org", commands.Params{})

	if got := out.last(t); !strings.Contains(got, "Pong!") {
		t.Errorf("reply = %q", got)
	}

	entries, err := s.GetAuditLog(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "ping" {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestHandleListVMs_Filter(t *testing.T) {
	provider := &fakeProvider{instances: []compute.Instance{
		{ID: "aaa", Name: "web-01", State: compute.StateRunning, Size: "small"},
		{ID: "bbb", Name: "web-02", State: compute.StateStopped, Size: "small"},
		{ID: "ccc", Name: "db-01", State: compute.StateRunning, Size: "large"},
	}}
	h := handlers.New(newTestStore(t), provider, testConfig())

	var out output
	h.HandleListVMs(context.Background(), out.fn, "U42", commands.ParseParams("--state=running --size=small"))

	got := out.last(t)
	if !strings.Contains(got, "*VMs (1)*") || !strings.Contains(got, "web-01") {
		t.Errorf("reply = %q", got)
	}
	if strings.Contains(got, "web-02") || strings.Contains(got, "db-01") {
		t.Errorf("filtered instances leaked into the reply: %q", got)
	}
}

func TestHandleListVMs_AuditFailureDoesNotBlockReply(t *testing.T) {
	provider := &fakeProvider{instances: []compute.Instance{
		{ID: "aaa", Name: "web-01", State: compute.StateRunning, Size: "small"},
	}}
	s := newTestStore(t)
	h := handlers.New(s, provider, testConfig())

	// A closed store makes every audit write fail; the listing must still
	// reach the user.
	s.Close()

	var out output
	h.HandleListVMs(context.Background(), out.fn, "U42", commands.Params{})

	if got := out.last(t); !strings.Contains(got, "*VMs (1)*") || !strings.Contains(got, "web-01") {
		t.Errorf("reply = %q", got)
	}
}

func TestHandleListVMs_Empty(t *testing.T) {
	h := handlers.New(newTestStore(t), &fakeProvider{}, testConfig())
	var out output
	h.HandleListVMs(context.Background(), out.fn, "U42", commands.Params{})

	if got := out.last(t); !strings.Contains(got, "no matching VMs") {
		t.Errorf("reply = %q", got)
	}
}

func TestHandleListVMs_NoProvider(t *testing.T) {
	h := handlers.New(newTestStore(t), nil, testConfig())
	var out output
	h.HandleListVMs(context.Background(), out.fn, "U42", commands.Params{})

	if got := out.last(t); !strings.Contains(got, "No compute backend is configured") {
		t.Errorf("reply = %q", got)
	}
}

func TestHandleCreateVM(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestStore(t)
	h := handlers.New(s, provider, testConfig())

	var out output
	h.HandleCreateVM(context.Background(), out.fn, "U42", commands.ParseParams("--os_name=centos --name=build-box"))

	got := out.last(t)
	if !strings.Contains(got, "Successfully created VM *build-box*") {
		t.Errorf("reply = %q", got)
	}

	if len(provider.created) != 1 {
		t.Fatalf("created = %+v", provider.created)
	}
	spec := provider.created[0]
	if spec.OSName != "centos" || spec.Image != "quay.io/centos/centos:stream9" {
		t.Errorf("spec = %+v", spec)
	}
	if spec.Size != "small" {
		t.Errorf("size should default from config, got %q", spec.Size)
	}
	if spec.Owner != "U42" {
		t.Errorf("owner = %q", spec.Owner)
	}

	entries, err := s.GetAuditLog(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "vm.create" || entries[0].Result != "success" {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestHandleCreateVM_DefaultsFromConfig(t *testing.T) {
	provider := &fakeProvider{}
	h := handlers.New(newTestStore(t), provider, testConfig())

	var out output
	h.HandleCreateVM(context.Background(), out.fn, "U42", commands.Params{})

	if len(provider.created) != 1 {
		t.Fatalf("created = %+v", provider.created)
	}
	if got := provider.created[0].OSName; got != "fedora" {
		t.Errorf("os_name should default to the config default, got %q", got)
	}
}

func TestHandleCreateVM_UnknownOS(t *testing.T) {
	provider := &fakeProvider{}
	h := handlers.New(newTestStore(t), provider, testConfig())

	var out output
	h.HandleCreateVM(context.Background(), out.fn, "U42", commands.ParseParams("--os_name=debian"))

	if got := out.last(t); !strings.Contains(got, "Unknown OS `debian`. Available: centos, fedora") {
		t.Errorf("reply = %q", got)
	}
	if len(provider.created) != 0 {
		t.Error("provider must not be called for an unknown OS")
	}
}

func TestHandleCreateVM_ProviderError(t *testing.T) {
	provider := &fakeProvider{createErr: errors.New("image pull failed")}
	s := newTestStore(t)
	h := handlers.New(s, provider, testConfig())

	var out output
	h.HandleCreateVM(context.Background(), out.fn, "U42", commands.ParseParams("--os_name=fedora"))

	if got := out.last(t); !strings.Contains(got, "image pull failed") {
		t.Errorf("reply = %q", got)
	}

	entries, err := s.GetAuditLog(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if len(entries) != 1 || entries[0].Result != "error" {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestHandleModifyVM(t *testing.T) {
	cases := []struct {
		params string
		wantOp string
	}{
		{"--vm-id=abc123 --start", "start abc123"},
		{"--vm-id=abc123 --stop", "stop abc123"},
		{"--vm-id=abc123 --terminate", "terminate abc123"},
	}
	for _, tc := range cases {
		provider := &fakeProvider{}
		h := handlers.New(newTestStore(t), provider, testConfig())

		var out output
		h.HandleModifyVM(context.Background(), out.fn, "U42", commands.ParseParams(tc.params))

		if len(provider.modified) != 1 || provider.modified[0] != tc.wantOp {
			t.Errorf("params %q: modified = %v, want [%s]", tc.params, provider.modified, tc.wantOp)
		}
		if got := out.last(t); !strings.Contains(got, "succeeded") {
			t.Errorf("params %q: reply = %q", tc.params, got)
		}
	}
}

func TestHandleModifyVM_FlagValidation(t *testing.T) {
	for _, params := range []string{
		"--vm-id=abc123",
		"--vm-id=abc123 --start --stop",
	} {
		provider := &fakeProvider{}
		h := handlers.New(newTestStore(t), provider, testConfig())

		var out output
		h.HandleModifyVM(context.Background(), out.fn, "U42", commands.ParseParams(params))

		if len(provider.modified) != 0 {
			t.Errorf("params %q: provider must not be called", params)
		}
		if got := out.last(t); !strings.Contains(got, "exactly one of") {
			t.Errorf("params %q: reply = %q", params, got)
		}
	}
}

func TestHandleModifyVM_NotFound(t *testing.T) {
	provider := &fakeProvider{modifyErr: compute.ErrNotFound}
	h := handlers.New(newTestStore(t), provider, testConfig())

	var out output
	h.HandleModifyVM(context.Background(), out.fn, "U42", commands.ParseParams("--vm-id=ghost --stop"))

	if got := out.last(t); !strings.Contains(got, "No VM with ID `ghost` was found.") {
		t.Errorf("reply = %q", got)
	}
}

func TestHandleTeamLinks(t *testing.T) {
	h := handlers.New(newTestStore(t), nil, testConfig())
	var out output
	h.HandleTeamLinks(context.Background(), out.fn, "U42", commands.Params{})

	if got := out.last(t); !strings.Contains(got, "Runbook: https://wiki.example.com/runbook") {
		t.Errorf("reply = %q", got)
	}

	bare := handlers.New(newTestStore(t), nil, nil)
	var out2 output
	bare.HandleTeamLinks(context.Background(), out2.fn, "U42", commands.Params{})
	if got := out2.last(t); got != "No team links configured." {
		t.Errorf("reply = %q", got)
	}
}

func TestHandleAuditTail(t *testing.T) {
	s := newTestStore(t)
	h := handlers.New(s, nil, nil)
	ctx := context.Background()

	var out output
	h.HandleAuditTail(ctx, out.fn, "U42", commands.Params{})
	if got := out.last(t); got != "The audit log is empty." {
		t.Errorf("reply = %q", got)
	}

	for i := 0; i < 3; i++ {
		if err := s.WriteAudit(ctx, "t_tail", "@alice:example.org", "ping", "", "success", nil, ""); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
	}

	var out2 output
	h.HandleAuditTail(ctx, out2.fn, "U42", commands.ParseParams("--n=2"))
	got := out2.last(t)
	if !strings.Contains(got, "*Recent Audit Entries (last 2)*") {
		t.Errorf("reply = %q", got)
	}
	if strings.Count(got, "Trace: t_tail") != 2 {
		t.Errorf("expected 2 entries in reply:\n%s", got)
	}
}
