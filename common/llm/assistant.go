package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
)

// sessionState tracks progress through the file-session protocol. Only the
// two run states loop back to themselves (polling); every other transition is
// one-shot.
type sessionState string

const (
	stateCreated          sessionState = "created"
	stateUploadingFiles   sessionState = "uploading_files"
	stateAssistantCreated sessionState = "assistant_created"
	stateThreadCreated    sessionState = "thread_created"
	stateMessagesAdded    sessionState = "messages_added"
	stateRunQueued        sessionState = "run_queued"
	stateRunInProgress    sessionState = "run_in_progress"
	stateRunCompleted     sessionState = "run_completed"
	stateRunFailed        sessionState = "run_failed"
)

var sessionTransitions = map[sessionState][]sessionState{
	stateCreated:          {stateUploadingFiles},
	stateUploadingFiles:   {stateAssistantCreated},
	stateAssistantCreated: {stateThreadCreated},
	stateThreadCreated:    {stateMessagesAdded},
	stateMessagesAdded:    {stateRunQueued},
	stateRunQueued:        {stateRunQueued, stateRunInProgress, stateRunCompleted, stateRunFailed},
	stateRunInProgress:    {stateRunInProgress, stateRunCompleted, stateRunFailed},
}

func validTransition(from, to sessionState) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// fileSession implements the multi-step assistants protocol used for the
// file-heavy OpenAI path: upload files, create an assistant with file search,
// create a thread, append the turns, run, poll to a terminal state, read the
// reply. Cleanup of the assistant and every uploaded file runs regardless of
// outcome; cleanup failures are logged and never mask the primary result.
type fileSession struct {
	client     openai.Client
	httpClient *http.Client
	opts       SessionOptions
}

func newFileSession(client openai.Client, httpClient *http.Client, opts SessionOptions) *fileSession {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &fileSession{client: client, httpClient: httpClient, opts: opts.withDefaults()}
}

func (s *fileSession) Dispatch(ctx context.Context, payload *Payload) (*Result, error) {
	state := stateCreated

	var fileIDs map[string]string // file name -> provider file id
	var assistantID string
	var err error

	defer func() {
		s.cleanup(ctx, assistantID, fileIDs)
	}()

	state = stateUploadingFiles
	fileIDs, err = s.uploadFiles(ctx, payload.UploadFiles)
	if err != nil {
		return nil, err
	}

	assistant, err := s.client.Beta.Assistants.New(ctx, openai.BetaAssistantNewParams{
		Model:        payload.Model,
		Instructions: openai.String(joinSystem(payload)),
		Tools: []openai.AssistantToolUnionParam{
			{OfFileSearch: &openai.FileSearchToolParam{}},
		},
	})
	if err != nil {
		return nil, s.wrapError("creating assistant", err)
	}
	assistantID = assistant.ID
	state = stateAssistantCreated

	thread, err := s.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return nil, s.wrapError("creating thread", err)
	}
	state = stateThreadCreated

	if err := s.addMessages(ctx, thread.ID, payload, fileIDs); err != nil {
		return nil, err
	}
	state = stateMessagesAdded

	run, err := s.client.Beta.Threads.Runs.New(ctx, thread.ID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return nil, s.wrapError("starting run", err)
	}
	state = stateRunQueued

	state, run, err = s.pollRun(ctx, thread.ID, run, state)
	if err != nil {
		return nil, err
	}
	if state == stateRunFailed {
		return nil, &ProviderError{
			Provider: ProviderOpenAI,
			Message:  fmt.Sprintf("run ended in status %s", run.Status),
		}
	}

	content, err := s.readReply(ctx, thread.ID)
	if err != nil {
		return nil, err
	}

	return &Result{
		Content: content,
		Usage: usageFromCounts(
			int(run.Usage.PromptTokens),
			int(run.Usage.CompletionTokens),
			int(run.Usage.TotalTokens),
		),
	}, nil
}

// uploadFiles downloads each attachment and pushes it to the provider's file
// store, returning provider-assigned file IDs keyed by file name.
func (s *fileSession) uploadFiles(ctx context.Context, files []FileRef) (map[string]string, error) {
	ids := make(map[string]string, len(files))

	for _, f := range files {
		body, err := s.download(ctx, f.URL)
		if err != nil {
			return ids, &ProviderError{
				Provider: ProviderOpenAI,
				Message:  fmt.Sprintf("downloading %s for upload: %v", f.FileName, err),
				Cause:    err,
			}
		}

		uploaded, err := s.client.Files.New(ctx, openai.FileNewParams{
			File:    openai.File(body, f.FileName, f.MIMEType),
			Purpose: openai.FilePurposeAssistants,
		})
		body.Close()
		if err != nil {
			return ids, s.wrapError(fmt.Sprintf("uploading %s", f.FileName), err)
		}
		ids[f.FileName] = uploaded.ID
	}

	return ids, nil
}

func (s *fileSession) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// addMessages appends each turn as a thread message. The thread API has no
// system role; system content rides on the assistant's instructions instead.
// File attachments are resolved by matching file names to uploaded file IDs
// and ride on the final user turn.
func (s *fileSession) addMessages(ctx context.Context, threadID string, payload *Payload, fileIDs map[string]string) error {
	lastUser := -1
	for i, msg := range payload.Messages {
		if msg.Role == RoleUser {
			lastUser = i
		}
	}

	for i, msg := range payload.Messages {
		if msg.Role == RoleSystem {
			continue
		}

		role := openai.BetaThreadMessageNewParamsRoleUser
		if msg.Role == RoleAssistant {
			role = openai.BetaThreadMessageNewParamsRoleAssistant
		}

		params := openai.BetaThreadMessageNewParams{
			Role:    role,
			Content: threadContentFor(msg),
		}

		if i == lastUser && len(fileIDs) > 0 {
			params.Attachments = attachmentsFor(payload.UploadFiles, fileIDs)
		}

		if _, err := s.client.Beta.Threads.Messages.New(ctx, threadID, params); err != nil {
			return s.wrapError("adding thread message", err)
		}
	}

	return nil
}

// attachmentsFor resolves uploaded file names to provider file IDs and tags
// each attachment for file search. Files that never finished uploading have
// no ID and are skipped.
func attachmentsFor(files []FileRef, fileIDs map[string]string) []openai.BetaThreadMessageNewParamsAttachment {
	var out []openai.BetaThreadMessageNewParamsAttachment
	for _, f := range files {
		id, ok := fileIDs[f.FileName]
		if !ok {
			continue
		}
		out = append(out, openai.BetaThreadMessageNewParamsAttachment{
			FileID: openai.String(id),
			Tools: []openai.BetaThreadMessageNewParamsAttachmentToolUnion{
				{OfFileSearch: &openai.BetaThreadMessageNewParamsAttachmentToolFileSearch{}},
			},
		})
	}
	return out
}

// threadContentFor keeps image parts alive on the file-session path: a turn
// carrying images becomes a multi-part content array so files (as
// attachments) and images ride the same completion call.
func threadContentFor(msg Message) openai.BetaThreadMessageNewParamsContentUnion {
	if !hasImageParts(msg) {
		return openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(msg.Text()),
		}
	}

	var parts []openai.MessageContentPartParamUnion
	for _, p := range msg.Parts {
		switch p.Type {
		case PartText:
			parts = append(parts, openai.MessageContentPartParamUnion{
				OfText: &openai.TextContentBlockParam{Text: p.Text},
			})
		case PartImageURL:
			parts = append(parts, openai.MessageContentPartParamUnion{
				OfImageURL: &openai.ImageURLContentBlockParam{
					ImageURL: openai.ImageURLParam{URL: p.URL},
				},
			})
		}
	}
	return openai.BetaThreadMessageNewParamsContentUnion{
		OfArrayOfContentParts: parts,
	}
}

// pollRun waits for the run to reach a terminal state, bounded by MaxPolls
// and the caller's context deadline. An exhausted bound is a timeout
// ProviderError; cleanup still runs via the dispatch defer.
func (s *fileSession) pollRun(ctx context.Context, threadID string, run *openai.Run, state sessionState) (sessionState, *openai.Run, error) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	// The status fetched by the final refresh is still inspected before the
	// bound is declared exhausted.
	for polls := 0; ; polls++ {
		next, terminal := runStateFor(run.Status)
		if !validTransition(state, next) {
			slog.WarnContext(ctx, "unexpected run state transition",
				"from", string(state),
				"to", string(next),
				"status", run.Status)
		}
		state = next
		if terminal {
			return state, run, nil
		}
		if polls >= s.opts.MaxPolls {
			break
		}

		select {
		case <-ctx.Done():
			return state, run, &ProviderError{
				Provider: ProviderOpenAI,
				Message:  "run cancelled while polling",
				Cause:    ctx.Err(),
			}
		case <-ticker.C:
		}

		refreshed, err := s.client.Beta.Threads.Runs.Get(ctx, threadID, run.ID)
		if err != nil {
			return state, run, s.wrapError("polling run", err)
		}
		run = refreshed
	}

	return state, run, &ProviderError{
		Provider: ProviderOpenAI,
		Message:  fmt.Sprintf("run did not complete within %d polls", s.opts.MaxPolls),
	}
}

func runStateFor(status openai.RunStatus) (sessionState, bool) {
	switch status {
	case openai.RunStatusQueued:
		return stateRunQueued, false
	case openai.RunStatusInProgress:
		return stateRunInProgress, false
	case openai.RunStatusCompleted:
		return stateRunCompleted, true
	default:
		// failed, cancelled, expired, requires_action all end the session
		return stateRunFailed, true
	}
}

// readReply returns the text of the first assistant-authored thread message.
func (s *fileSession) readReply(ctx context.Context, threadID string) (string, error) {
	page, err := s.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
	})
	if err != nil {
		return "", s.wrapError("listing thread messages", err)
	}

	for _, msg := range page.Data {
		if msg.Role != openai.MessageRoleAssistant {
			continue
		}
		var text string
		for _, block := range msg.Content {
			if block.Type == "text" {
				text += block.Text.Value
			}
		}
		return text, nil
	}

	return "", &ProviderError{Provider: ProviderOpenAI, Message: "no assistant reply in thread"}
}

// cleanup deletes the assistant and every uploaded file. Failures are logged
// and swallowed so they never mask the primary result or error.
func (s *fileSession) cleanup(ctx context.Context, assistantID string, fileIDs map[string]string) {
	// The session context may already be cancelled or past its deadline by
	// the time the defer fires; the deletes still have to reach the provider.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if assistantID != "" {
		if _, err := s.client.Beta.Assistants.Delete(ctx, assistantID); err != nil {
			slog.WarnContext(ctx, "failed to delete assistant after session",
				"assistant_id", assistantID,
				"error", err)
		}
	}
	for name, id := range fileIDs {
		if _, err := s.client.Files.Delete(ctx, id); err != nil {
			slog.WarnContext(ctx, "failed to delete uploaded file after session",
				"file_name", name,
				"file_id", id,
				"error", err)
		}
	}
}

func (s *fileSession) wrapError(stage string, err error) error {
	wrapped := (&openaiAdapter{providerID: ProviderOpenAI}).wrapError(err)
	if pe, ok := wrapped.(*ProviderError); ok {
		pe.Message = stage + ": " + pe.Message
		return pe
	}
	return wrapped
}

func joinSystem(payload *Payload) string {
	var out string
	for _, text := range payload.System {
		if out != "" {
			out += "\n\n"
		}
		out += text
	}
	for _, msg := range payload.Messages {
		if msg.Role == RoleSystem {
			if out != "" {
				out += "\n\n"
			}
			out += msg.Text()
		}
	}
	return out
}

