package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/kimixchange/internal/cli"
	"github.com/fpang/kimixchange/internal/history"
	"github.com/fpang/kimixchange/internal/media"
	"github.com/fpang/kimixchange/internal/swap"
	"github.com/fpang/kimixchange/internal/workflow"
)

// errGuidelinesNotAccepted is returned when face_swap is called without
// accept_guidelines set.
var errGuidelinesNotAccepted = errors.New("usage guidelines not accepted; read them and call again with accept_guidelines=true:\n\n" + cli.ConsentText)

type toolset struct {
	swapper workflow.Swapper
	store   *history.Store
	now     func() time.Time
}

type faceSwapInput struct {
	SourcePath       string  `json:"source_path" jsonschema:"absolute path of the photo whose face is used"`
	TargetPath       string  `json:"target_path" jsonschema:"absolute path of the photo whose person receives the face"`
	OutPath          string  `json:"out_path,omitempty" jsonschema:"where to write the result image; omitted returns the image inline"`
	AcceptGuidelines bool    `json:"accept_guidelines" jsonschema:"confirms everyone pictured consented to this swap"`
	Enhance          *bool   `json:"enhance,omitempty" jsonschema:"sharpen and upscale the result (default true)"`
	Quality          string  `json:"quality,omitempty" jsonschema:"low or high (default high)"`
	BlendStrength    float64 `json:"blend_strength,omitempty" jsonschema:"blend strength hint between 0 and 1 (default 0.8)"`
}

type faceSwapOutput struct {
	HistoryID    string `json:"history_id,omitempty"`
	OutPath      string `json:"out_path,omitempty"`
	MIMEType     string `json:"mime_type"`
	Bytes        int    `json:"bytes"`
	HistorySaved bool   `json:"history_saved"`
}

type listHistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum records to return (default all)"`
}

type historyEntry struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

type listHistoryOutput struct {
	Records  []historyEntry `json:"records"`
	Capacity int            `json:"capacity"`
}

func (t *toolset) register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "face_swap",
		Description: "Place the face from source_path onto the person in target_path using Gemini. The result is saved to history.",
	}, t.faceSwap)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_history",
		Description: "List saved face swaps, newest first.",
	}, t.listHistory)
}

func (t *toolset) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func (t *toolset) faceSwap(ctx context.Context, req *mcp.CallToolRequest, in faceSwapInput) (*mcp.CallToolResult, faceSwapOutput, error) {
	if !in.AcceptGuidelines {
		return nil, faceSwapOutput{}, errGuidelinesNotAccepted
	}

	cfg, err := in.config()
	if err != nil {
		return nil, faceSwapOutput{}, err
	}

	source, err := media.IngestFile(in.SourcePath)
	if err != nil {
		return nil, faceSwapOutput{}, err
	}
	target, err := media.IngestFile(in.TargetPath)
	if err != nil {
		return nil, faceSwapOutput{}, err
	}

	result, err := t.swapper.Swap(ctx, source.Data, target.Data, cfg)
	if err != nil {
		return nil, faceSwapOutput{}, err
	}
	mimeType, data, err := media.DecodeDataURL(result)
	if err != nil {
		return nil, faceSwapOutput{}, fmt.Errorf("decode result: %w", err)
	}

	out := faceSwapOutput{MIMEType: mimeType, Bytes: len(data)}
	rec := history.NewRecord(source.Data, target.Data, result, t.clock())
	if _, err := t.store.Append(ctx, rec); err != nil {
		log.Warn().Err(err).Str("id", rec.ID).Msg("Failed to persist history")
	} else {
		out.HistoryID = rec.ID
		out.HistorySaved = true
	}

	if in.OutPath != "" {
		if err := os.WriteFile(in.OutPath, data, 0o644); err != nil {
			return nil, faceSwapOutput{}, fmt.Errorf("write %s: %w", in.OutPath, err)
		}
		out.OutPath = in.OutPath
		return nil, out, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.ImageContent{Data: data, MIMEType: mimeType}},
	}, out, nil
}

func (in faceSwapInput) config() (swap.Config, error) {
	cfg := swap.DefaultConfig()
	if in.Enhance != nil {
		cfg.Enhance = *in.Enhance
	}
	if in.Quality != "" {
		q, err := swap.ParseQuality(in.Quality)
		if err != nil {
			return cfg, err
		}
		cfg.Quality = q
	}
	if in.BlendStrength != 0 {
		cfg.BlendStrength = in.BlendStrength
	}
	return cfg, cfg.Validate()
}

func (t *toolset) listHistory(ctx context.Context, req *mcp.CallToolRequest, in listHistoryInput) (*mcp.CallToolResult, listHistoryOutput, error) {
	records := t.store.Load(ctx)
	if in.Limit > 0 && in.Limit < len(records) {
		records = records[:in.Limit]
	}
	out := listHistoryOutput{Records: make([]historyEntry, 0, len(records)), Capacity: history.Capacity}
	for _, rec := range records {
		out.Records = append(out.Records, historyEntry{ID: rec.ID, CreatedAt: rec.CreatedAt().UTC().Format(time.RFC3339)})
	}
	return nil, out, nil
}
