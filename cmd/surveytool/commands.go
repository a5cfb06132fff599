package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/paulexconde/surveysense/internal/concordia"
	"github.com/paulexconde/surveysense/internal/survey"
	"github.com/paulexconde/surveysense/pkg/fault"
	"github.com/paulexconde/surveysense/pkg/log"
)

type command struct {
	needsDB bool
	run     func(ctx context.Context, a *app, args []string) error
}

var commandOrder = []string{"register", "update", "remove", "surveys", "describe", "schema", "validate", "upload", "list", "rating"}

var usages = map[string]string{
	"register": "<definition-file>  register a survey definition (JSON or YAML)",
	"update":   "<definition-file>  replace a registered survey definition",
	"remove":   "<survey-id>  remove a survey without responses",
	"surveys":  "[-page n] [-limit n]  list registered surveys",
	"describe": "[-fields f,...] [-prompts id,...] <survey-id>  print a survey document",
	"schema":   "[-prompt id] <survey-id>  print the response schema",
	"validate": "[-media dir] <definition-file> <submission-file>  validate responses offline",
	"upload":   "[-media dir] <survey-id> <submission-file>  validate and store responses",
	"list":     "[-page n] [-limit n] <survey-id>  list stored responses",
	"rating":   "<survey-id> <prompt-id>  summarize a 0 to 10 rating prompt",
}

var commands = map[string]command{
	"register": {needsDB: true, run: registerCmd},
	"update":   {needsDB: true, run: updateCmd},
	"remove":   {needsDB: true, run: removeCmd},
	"surveys":  {needsDB: true, run: surveysCmd},
	"describe": {needsDB: true, run: describeCmd},
	"schema":   {needsDB: true, run: schemaCmd},
	"validate": {run: validateCmd},
	"upload":   {needsDB: true, run: uploadCmd},
	"list":     {needsDB: true, run: listCmd},
	"rating":   {needsDB: true, run: ratingCmd},
}

func subcommand(a *app, name string, args []string, positional int, setup func(fs *flag.FlagSet)) (*flag.FlagSet, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	if setup != nil {
		setup(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != positional {
		return nil, fault.NewClientError(fmt.Sprintf("usage: surveytool %s %s", name, usages[name]), nil)
	}
	return fs, nil
}

func registerCmd(ctx context.Context, a *app, args []string) error {
	fs, err := subcommand(a, "register", args, 1, nil)
	if err != nil {
		return err
	}
	sv, err := readSurvey(fs.Arg(0))
	if err != nil {
		return err
	}
	row, err := a.surveys.Register(ctx, sv)
	if err != nil {
		return err
	}
	return writeJSON(a, row)
}

func updateCmd(ctx context.Context, a *app, args []string) error {
	fs, err := subcommand(a, "update", args, 1, nil)
	if err != nil {
		return err
	}
	sv, err := readSurvey(fs.Arg(0))
	if err != nil {
		return err
	}
	row, err := a.surveys.Update(ctx, sv)
	if err != nil {
		return err
	}
	return writeJSON(a, row)
}

func removeCmd(ctx context.Context, a *app, args []string) error {
	fs, err := subcommand(a, "remove", args, 1, nil)
	if err != nil {
		return err
	}
	return a.surveys.Remove(ctx, fs.Arg(0))
}

func surveysCmd(ctx context.Context, a *app, args []string) error {
	var page, limit int
	if _, err := subcommand(a, "surveys", args, 0, pageFlags(&page, &limit)); err != nil {
		return err
	}
	res, err := a.surveys.ListSurveys(ctx, page, limit)
	if err != nil {
		return err
	}
	return writeJSON(a, res)
}

func describeCmd(ctx context.Context, a *app, args []string) error {
	var fields, prompts string
	fs, err := subcommand(a, "describe", args, 1, func(fs *flag.FlagSet) {
		fs.StringVar(&fields, "fields", "", "comma separated fields: id,title,description,intro_text,submit_text,anytime,prompts (default all)")
		fs.StringVar(&prompts, "prompts", "", "comma separated top-level item ids to include")
	})
	if err != nil {
		return err
	}

	opts, err := jsonOptions(fields, prompts)
	if err != nil {
		return err
	}
	doc, err := a.surveys.Describe(ctx, fs.Arg(0), opts)
	if err != nil {
		return err
	}
	return writeJSON(a, doc)
}

func schemaCmd(ctx context.Context, a *app, args []string) error {
	var promptID string
	fs, err := subcommand(a, "schema", args, 1, func(fs *flag.FlagSet) {
		fs.StringVar(&promptID, "prompt", "", "describe only this top-level prompt")
	})
	if err != nil {
		return err
	}
	node, err := a.surveys.Schema(ctx, fs.Arg(0), promptID)
	if err != nil {
		return err
	}
	return concordia.Write(a.out, node)
}

func validateCmd(ctx context.Context, a *app, args []string) error {
	var mediaDir string
	fs, err := subcommand(a, "validate", args, 2, mediaFlag(&mediaDir))
	if err != nil {
		return err
	}

	sv, err := readSurvey(fs.Arg(0))
	if err != nil {
		return err
	}
	media, err := loadMedia(mediaDir)
	if err != nil {
		return err
	}
	subs, err := readSubmissions(fs.Arg(1), media)
	if err != nil {
		return err
	}

	out := make([]any, 0, len(subs))
	for i, sub := range subs {
		r, err := survey.NewResponse(sv, sub)
		if err != nil {
			return fmt.Errorf("submission %d: %w", i, err)
		}
		out = append(out, r.ToJSON())
	}
	return writeJSON(a, out)
}

func uploadCmd(ctx context.Context, a *app, args []string) error {
	var mediaDir string
	fs, err := subcommand(a, "upload", args, 2, mediaFlag(&mediaDir))
	if err != nil {
		return err
	}

	media, err := loadMedia(mediaDir)
	if err != nil {
		return err
	}
	subs, err := readSubmissions(fs.Arg(1), media)
	if err != nil {
		return err
	}
	res, err := a.responses.Upload(ctx, fs.Arg(0), subs)
	if err != nil {
		return err
	}
	return writeJSON(a, res)
}

func listCmd(ctx context.Context, a *app, args []string) error {
	var page, limit int
	fs, err := subcommand(a, "list", args, 1, pageFlags(&page, &limit))
	if err != nil {
		return err
	}
	res, err := a.responses.ListResponses(ctx, fs.Arg(0), page, limit)
	if err != nil {
		return err
	}
	return writeJSON(a, res)
}

func ratingCmd(ctx context.Context, a *app, args []string) error {
	fs, err := subcommand(a, "rating", args, 2, nil)
	if err != nil {
		return err
	}
	summary, err := a.responses.RatingSummary(ctx, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	score, err := summary.CalculateNPS()
	if err != nil {
		return err
	}
	return writeJSON(a, map[string]any{"summary": summary, "nps": score})
}

func pageFlags(page, limit *int) func(fs *flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.IntVar(page, "page", 1, "page number")
		fs.IntVar(limit, "limit", 10, "rows per page")
	}
}

func mediaFlag(dir *string) func(fs *flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.StringVar(dir, "media", "", "directory of attachments named <uuid>[.ext]")
	}
}

func jsonOptions(fields, prompts string) (survey.JSONOptions, error) {
	opts := survey.AllFields
	if fields != "" {
		opts = survey.JSONOptions{}
		for _, f := range strings.Split(fields, ",") {
			switch strings.TrimSpace(f) {
			case survey.JSONKeyID:
				opts.ID = true
			case survey.JSONKeyTitle:
				opts.Title = true
			case survey.JSONKeyDescription:
				opts.Description = true
			case survey.JSONKeyIntroText:
				opts.IntroText = true
			case survey.JSONKeySubmitText:
				opts.SubmitText = true
			case survey.JSONKeyAnytime:
				opts.Anytime = true
			case survey.JSONKeyItems:
				opts.Items = true
			default:
				return opts, fault.NewClientError(fmt.Sprintf("unknown field '%s'", f), nil)
			}
		}
	}
	if prompts != "" {
		opts.Items = true
		opts.PromptIDs = strings.Split(prompts, ",")
	}
	return opts, nil
}

func readSurvey(path string) (*survey.Survey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.NewClientError("cannot read the survey definition", err)
	}
	return survey.Parse(data)
}

// readSubmissions reads a single response document or a JSON array of them.
func readSubmissions(path string, media survey.MediaSet) ([]survey.Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.NewClientError("cannot read the survey responses", err)
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		sub, err := survey.ParseSubmission(data, media)
		if err != nil {
			return nil, err
		}
		return []survey.Submission{sub}, nil
	}

	var docs []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&docs); err != nil {
		return nil, fault.NewClientError("the survey responses are not valid JSON", err)
	}
	subs := make([]survey.Submission, 0, len(docs))
	for i, doc := range docs {
		sub, err := survey.SubmissionFromJSON(doc, media)
		if err != nil {
			return nil, fmt.Errorf("submission %d: %w", i, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// loadMedia reads every attachment in dir. Files whose base name is not a
// UUID are ignored.
func loadMedia(dir string) (survey.MediaSet, error) {
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fault.NewClientError("cannot read the media directory", err)
	}

	media := make(survey.MediaSet, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		id, err := uuid.Parse(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil {
			log.Warnf("surveytool: skipping media file %s: %v", name, err)
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fault.NewClientError("cannot read media file "+name, err)
		}
		media[id] = survey.Media{ID: id, Content: bytes.NewReader(content)}
	}
	return media, nil
}

func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
