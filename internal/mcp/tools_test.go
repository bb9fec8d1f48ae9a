package mcp

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/storyloom/storyloom/internal/game/service"
	"github.com/storyloom/storyloom/internal/narrator"
	"github.com/storyloom/storyloom/internal/storage/memory"
	"github.com/storyloom/storyloom/internal/template"
)

const testTemplate = `{
	"metadata": {"id": "campus", "name": "Campus Days", "description": "One semester."},
	"scenario": "Exams loom.",
	"startingPoint": "First day.",
	"attributes": {"intelligence": "Smarts"},
	"baseSkills": {"study": {"name": "Study", "description": "", "attributeKey": "intelligence"}},
	"playerCustomizations": {}
}`

func testServer(t *testing.T) *Server {
	t.Helper()
	templates := template.NewSource(fstest.MapFS{
		"campus.json": &fstest.MapFile{Data: []byte(testTemplate)},
	}, ".")
	echo := narrator.Func(func(_ context.Context, _ narrator.Request) (narrator.Response, error) {
		return narrator.Response{Text: "A scene unfolds.\n[STATS]\nAttribute changes: intelligence+1\nRelationship changes: none\n[/STATS]"}, nil
	})
	svc, err := service.New(service.Config{
		Store:     memory.New(),
		Templates: templates,
		Narrator:  echo,
		Retry:     narrator.RetryPolicy{Attempts: 1, Delay: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	server, err := NewServer(svc)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

func TestGameLifecycleThroughTools(t *testing.T) {
	server := testServer(t)
	ctx := context.Background()

	_, created, err := server.handleGameCreate(ctx, nil, GameCreateInput{
		TemplateID: "campus",
		UserID:     "user-1",
		PlayerName: "Alex",
	})
	if err != nil {
		t.Fatalf("game_create: %v", err)
	}
	if created.GameID == "" || created.Opening != "A scene unfolds." {
		t.Fatalf("unexpected create result %+v", created)
	}

	_, acted, err := server.handleGameAction(ctx, nil, GameActionInput{
		GameID: created.GameID,
		Action: "study hard",
	})
	if err != nil {
		t.Fatalf("game_action: %v", err)
	}
	if acted.Turn != 1 || acted.Attributes["intelligence"] != 6 {
		t.Fatalf("unexpected action result %+v", acted)
	}

	_, rolled, err := server.handleDiceRoll(ctx, nil, DiceRollInput{GameID: created.GameID, SkillID: "study"})
	if err != nil {
		t.Fatalf("dice_roll: %v", err)
	}
	if len(rolled.Values) != 3 {
		t.Fatalf("expected 3 dice values, got %v", rolled.Values)
	}

	_, loaded, err := server.handleGameLoad(ctx, nil, GameLoadInput{GameID: created.GameID})
	if err != nil {
		t.Fatalf("game_load: %v", err)
	}
	if loaded.Turn != 1 || loaded.HistoryLength != 1 {
		t.Fatalf("unexpected load result %+v", loaded)
	}

	_, ended, err := server.handleGameEnd(ctx, nil, GameEndInput{GameID: created.GameID})
	if err != nil {
		t.Fatalf("game_end: %v", err)
	}
	if ended.Status != "defeat" || ended.Ending == "" {
		t.Fatalf("unexpected end result %+v", ended)
	}

	if _, _, err := server.handleGameAction(ctx, nil, GameActionInput{GameID: created.GameID, Action: "study"}); err == nil {
		t.Fatal("expected error acting on ended game")
	}
}

func TestTemplatesListResource(t *testing.T) {
	server := testServer(t)

	result, err := server.handleTemplatesList(context.Background(), nil)
	if err != nil {
		t.Fatalf("templates list: %v", err)
	}
	if len(result.Contents) != 1 {
		t.Fatalf("expected one content item, got %d", len(result.Contents))
	}
	if !strings.Contains(result.Contents[0].Text, "Campus Days") {
		t.Fatalf("expected template metadata, got %s", result.Contents[0].Text)
	}
}
