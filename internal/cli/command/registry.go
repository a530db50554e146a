package command

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Session value names.
const (
	SessionPlayer = "player"
	SessionRoom   = "room"
)

func roomField() Field {
	return Field{Name: "room_id", Aliases: []string{"room", "roomId"}, Prompt: "room_id", Type: FieldString, Required: true, JSONName: "roomId", Session: SessionRoom}
}

func roomCommand(action, method, path string) Command {
	return Command{
		Service: "tournament",
		Action:  action,
		Method:  method,
		Path:    path,
		Fields:  []Field{roomField()},
	}
}

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		roomCommand("start", http.MethodPost, "/api/v1/tournament/start"),
		roomCommand("round", http.MethodPost, "/api/v1/tournament/round"),
		roomCommand("calculate", http.MethodPost, "/api/v1/tournament/calculate"),
		roomCommand("declare", http.MethodPost, "/api/v1/tournament/declare"),
		roomCommand("end", http.MethodPost, "/api/v1/tournament/end"),
		roomCommand("details", http.MethodGet, "/api/v1/tournament/details"),
		roomCommand("time", http.MethodGet, "/api/v1/tournament/time"),
		{
			Service: "tournament",
			Action:  "leave",
			Method:  http.MethodPost,
			Path:    "/api/v1/tournament/leave",
			Fields: []Field{
				roomField(),
				{Name: "player_id", Aliases: []string{"player", "playerId"}, Prompt: "player_id", Type: FieldString, JSONName: "playerId", Session: SessionPlayer},
			},
		},
		{
			Service: "match",
			Action:  "submit",
			Method:  http.MethodPost,
			Path:    "/api/v1/match/submit",
			Fields: []Field{
				{Name: "problem_id", Aliases: []string{"problem", "problemId"}, Prompt: "problem_id", Type: FieldString, Required: true, JSONName: "problemId"},
				{Name: "language_id", Aliases: []string{"language", "lang", "languageId"}, Prompt: "language_id", Type: FieldString, Required: true, JSONName: "languageId"},
				{Name: "script", Aliases: []string{"code"}, Prompt: "script", Type: FieldString, Required: true, FromFile: "script_file"},
				{Name: "script_file", Aliases: []string{"file"}, Prompt: "script_file", Type: FieldFile},
				{Name: "player_id", Aliases: []string{"player", "playerId"}, Prompt: "player_id", Type: FieldString, JSONName: "playerId", Session: SessionPlayer},
			},
		},
		{
			Service: "match",
			Action:  "problem",
			Method:  http.MethodGet,
			Path:    "/api/v1/match/problem",
			Fields: []Field{
				{Name: "player_id", Aliases: []string{"player", "playerId"}, Prompt: "player_id", Type: FieldString, JSONName: "playerId", Session: SessionPlayer},
			},
		},
		{
			Service: "match",
			Action:  "health",
			Method:  http.MethodGet,
			Path:    "/api/v1/match/executor/health",
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		key := fmt.Sprintf("%s %s", cmd.Service, cmd.Action)
		result[key] = cmd
	}
	return result
}

// Names returns the registry keys in a stable order.
func Names(commands map[string]Command) []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildRequest creates the HTTP request for a command.
// GET commands carry their fields as query parameters, everything else as a JSON body.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	values, err := collectValues(cmd, params)
	if err != nil {
		return RequestSpec{}, err
	}

	req := RequestSpec{Method: cmd.Method, Path: cmd.Path}
	if cmd.Method == http.MethodGet {
		if len(values) > 0 {
			query := url.Values{}
			for k, v := range values {
				query.Set(k, v)
			}
			req.Path += "?" + query.Encode()
		}
		return req, nil
	}

	body, err := json.Marshal(values)
	if err != nil {
		return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
	}
	req.Body = body
	return req, nil
}

func collectValues(cmd Command, params Params) (map[string]string, error) {
	values := make(map[string]string, len(cmd.Fields))
	for _, field := range cmd.Fields {
		if field.Type == FieldFile {
			continue
		}
		value := params.Get(field.Name)
		if (value == "" || value == fileMarker) && field.FromFile != "" && params.Get(field.FromFile) != "" {
			content, err := ReadFile(params.Get(field.FromFile))
			if err != nil {
				return nil, err
			}
			value = content
		}
		if value == fileMarker {
			value = ""
		}
		if field.FromFile == "" {
			value = strings.TrimSpace(value)
		}
		if value == "" {
			if field.Required {
				return nil, fmt.Errorf("%s is required", field.Name)
			}
			continue
		}
		values[field.key()] = value
	}
	return values, nil
}
