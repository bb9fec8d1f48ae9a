package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/storyloom/storyloom/internal/game/dice"
	"github.com/storyloom/storyloom/internal/game/domain"
	"github.com/storyloom/storyloom/internal/game/service"
)

const templatesListURI = "templates://list"

// GameCreateInput starts a new game.
type GameCreateInput struct {
	TemplateID     string            `json:"template_id" jsonschema:"id of the scenario template to play"`
	UserID         string            `json:"user_id" jsonschema:"owner of the new game"`
	PlayerName     string            `json:"player_name" jsonschema:"protagonist name"`
	Customizations map[string]string `json:"customizations,omitempty" jsonschema:"customization key to chosen option"`
}

// GameCreateResult reports the seeded game.
type GameCreateResult struct {
	GameID        string         `json:"game_id"`
	Opening       string         `json:"opening"`
	Attributes    map[string]int `json:"attributes"`
	Relationships map[string]int `json:"relationships,omitempty"`
	Stage         string         `json:"stage,omitempty"`
}

// GameActionInput plays one turn.
type GameActionInput struct {
	GameID     string `json:"game_id"`
	Action     string `json:"action" jsonschema:"what the player does this turn"`
	SkillID    string `json:"skill_id,omitempty" jsonschema:"base skill to roll for this action"`
	DiceValues []int  `json:"dice_values,omitempty" jsonschema:"client-side dice values, three faces 1-6"`
}

// DiceSummary is the wire form of a resolved roll.
type DiceSummary struct {
	Values       []int  `json:"values"`
	IsMatch      bool   `json:"is_match"`
	Sum          int    `json:"sum,omitempty"`
	Modifier     int    `json:"modifier,omitempty"`
	Total        int    `json:"total,omitempty"`
	SpecialEvent string `json:"special_event,omitempty"`
}

// GameActionResult reports what the turn changed.
type GameActionResult struct {
	Narrative      string         `json:"narrative"`
	Turn           int            `json:"turn"`
	Status         string         `json:"status"`
	Stage          string         `json:"stage,omitempty"`
	Attributes     map[string]int `json:"attributes"`
	Relationships  map[string]int `json:"relationships,omitempty"`
	Dice           *DiceSummary   `json:"dice,omitempty"`
	CompletedGoals []string       `json:"completed_goals,omitempty"`
	Ending         string         `json:"ending,omitempty"`
}

// DiceRollInput rolls without consuming a turn.
type DiceRollInput struct {
	GameID  string `json:"game_id"`
	SkillID string `json:"skill_id,omitempty"`
}

// GameLoadInput fetches a stored game.
type GameLoadInput struct {
	GameID string `json:"game_id"`
}

// GameLoadResult is the stored game's player-facing view.
type GameLoadResult struct {
	GameID        string         `json:"game_id"`
	TemplateID    string         `json:"template_id"`
	PlayerName    string         `json:"player_name"`
	Turn          int            `json:"turn"`
	Status        string         `json:"status"`
	Stage         string         `json:"stage,omitempty"`
	CurrentScene  string         `json:"current_scene"`
	Attributes    map[string]int `json:"attributes"`
	Relationships map[string]int `json:"relationships,omitempty"`
	HistoryLength int            `json:"history_length"`
	Ending        string         `json:"ending,omitempty"`
}

// GameEndInput abandons a game.
type GameEndInput struct {
	GameID string `json:"game_id"`
}

// GameEndResult reports the terminal state.
type GameEndResult struct {
	Status string `json:"status"`
	Ending string `json:"ending"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "game_create",
		Description: "Start a new story from a scenario template and get the opening scene.",
	}, s.handleGameCreate)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "game_action",
		Description: "Play one turn: the player's action is narrated and state advances.",
	}, s.handleGameAction)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "dice_roll",
		Description: "Roll three dice for a skill without consuming a turn.",
	}, s.handleDiceRoll)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "game_load",
		Description: "Load a stored game and its current scene.",
	}, s.handleGameLoad)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "game_end",
		Description: "Abandon a game, marking it ended.",
	}, s.handleGameEnd)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         templatesListURI,
		Name:        "templates",
		Description: "Metadata for every playable scenario template.",
		MIMEType:    "application/json",
	}, s.handleTemplatesList)
}

func (s *Server) handleGameCreate(ctx context.Context, _ *mcp.CallToolRequest, input GameCreateInput) (*mcp.CallToolResult, GameCreateResult, error) {
	state, err := s.service.CreateGame(ctx, service.CreateGameInput{
		TemplateID:     input.TemplateID,
		UserID:         input.UserID,
		PlayerName:     input.PlayerName,
		Customizations: input.Customizations,
	})
	if err != nil {
		return nil, GameCreateResult{}, fmt.Errorf("game create failed: %w", err)
	}
	return nil, GameCreateResult{
		GameID:        state.ID,
		Opening:       state.CurrentScene,
		Attributes:    state.Attributes,
		Relationships: state.Relationships,
		Stage:         state.CurrentStageID,
	}, nil
}

func (s *Server) handleGameAction(ctx context.Context, _ *mcp.CallToolRequest, input GameActionInput) (*mcp.CallToolResult, GameActionResult, error) {
	result, err := s.service.PerformAction(ctx, service.ActionInput{
		GameID:     input.GameID,
		Action:     input.Action,
		SkillID:    input.SkillID,
		DiceValues: input.DiceValues,
	})
	if err != nil {
		return nil, GameActionResult{}, fmt.Errorf("game action failed: %w", err)
	}

	state := result.State
	return nil, GameActionResult{
		Narrative:      result.Narrative,
		Turn:           state.Turn,
		Status:         string(state.Status),
		Stage:          state.CurrentStageID,
		Attributes:     state.Attributes,
		Relationships:  state.Relationships,
		Dice:           diceSummary(result.Dice),
		CompletedGoals: result.Progression.NewlyCompletedGoals,
		Ending:         state.EndingText,
	}, nil
}

func (s *Server) handleDiceRoll(ctx context.Context, _ *mcp.CallToolRequest, input DiceRollInput) (*mcp.CallToolResult, DiceSummary, error) {
	outcome, err := s.service.RollDice(ctx, input.GameID, input.SkillID)
	if err != nil {
		return nil, DiceSummary{}, fmt.Errorf("dice roll failed: %w", err)
	}
	return nil, *diceSummary(&outcome), nil
}

func (s *Server) handleGameLoad(ctx context.Context, _ *mcp.CallToolRequest, input GameLoadInput) (*mcp.CallToolResult, GameLoadResult, error) {
	state, err := s.service.LoadGame(ctx, input.GameID)
	if err != nil {
		return nil, GameLoadResult{}, fmt.Errorf("game load failed: %w", err)
	}
	return nil, loadResult(state), nil
}

func (s *Server) handleGameEnd(ctx context.Context, _ *mcp.CallToolRequest, input GameEndInput) (*mcp.CallToolResult, GameEndResult, error) {
	state, err := s.service.EndGame(ctx, input.GameID)
	if err != nil {
		return nil, GameEndResult{}, fmt.Errorf("game end failed: %w", err)
	}
	return nil, GameEndResult{
		Status: string(state.Status),
		Ending: state.EndingText,
	}, nil
}

func (s *Server) handleTemplatesList(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	metas, err := s.service.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("templates list failed: %w", err)
	}

	data, err := json.MarshalIndent(metas, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal templates list: %w", err)
	}
	uri := templatesListURI
	if req != nil && req.Params != nil && req.Params.URI != "" {
		uri = req.Params.URI
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

func diceSummary(outcome *dice.Outcome) *DiceSummary {
	if outcome == nil {
		return nil
	}
	summary := &DiceSummary{
		Values:   outcome.Values,
		IsMatch:  outcome.IsMatch,
		Sum:      outcome.Sum,
		Modifier: outcome.Modifier,
		Total:    outcome.Total,
	}
	if outcome.SpecialEvent != nil {
		summary.SpecialEvent = outcome.SpecialEvent.Name
	}
	return summary
}

func loadResult(state *domain.GameState) GameLoadResult {
	return GameLoadResult{
		GameID:        state.ID,
		TemplateID:    state.TemplateID,
		PlayerName:    state.PlayerName,
		Turn:          state.Turn,
		Status:        string(state.Status),
		Stage:         state.CurrentStageID,
		CurrentScene:  state.CurrentScene,
		Attributes:    state.Attributes,
		Relationships: state.Relationships,
		HistoryLength: len(state.History),
		Ending:        state.EndingText,
	}
}
