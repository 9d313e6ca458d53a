package analysis

import (
	"context"
	"fmt"
	"strings"

	aiservice "carb-estimator/internal/core/ai/service"
	"carb-estimator/internal/core/carb"
	"carb-estimator/internal/core/history"
	"carb-estimator/internal/core/webpage"
	"carb-estimator/internal/infrastructure/config"
	"carb-estimator/internal/pkg/common"

	"go.uber.org/zap"
)

// Generator 呼叫模型取得原始文字
type Generator interface {
	ProcessRequest(ctx context.Context, req *aiservice.Request) (*aiservice.Response, error)
	Model() string
}

// PageFetcher 取得食譜頁面文字
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// HistoryWriter 保存成功的分析
type HistoryWriter interface {
	Save(ctx context.Context, e *history.Entry) error
}

// Request 分析請求
type Request struct {
	Profile string
	Images  []string
	Note    string
	URL     string
}

// Analysis 分析結果；DecodeFailure 也以 Outcome 回傳而非 error
type Analysis struct {
	ID              string       `json:"id"`
	Profile         string       `json:"profile"`
	Outcome         carb.Outcome `json:"outcome"`
	ConfidenceLabel string       `json:"confidenceLabel,omitempty"`
	Model           string       `json:"model,omitempty"`
	CacheHit        bool         `json:"cacheHit"`
	Raw             string       `json:"-"`
}

// Service 分析流程：驗證 → 提示詞 → 模型 → 解碼 → 紀錄
type Service struct {
	ai               Generator
	pages            PageFetcher
	history          HistoryWriter
	maxImages        int
	maxResponseBytes int
}

// NewService 建立分析服務；pages 與 store 可為 nil
func NewService(cfg *config.Config, ai Generator, pages PageFetcher, store HistoryWriter) *Service {
	return &Service{
		ai:               ai,
		pages:            pages,
		history:          store,
		maxImages:        cfg.Analysis.MaxImages,
		maxResponseBytes: cfg.Analysis.MaxResponseBytes,
	}
}

// Analyze 執行一次分析
func (s *Service) Analyze(ctx context.Context, req *Request) (*Analysis, error) {
	profile, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	var pageText string
	if url := strings.TrimSpace(req.URL); url != "" && profile.HasPortions() {
		pageText, err = s.fetchPage(ctx, url)
		if err != nil {
			if len(req.Images) == 0 && strings.TrimSpace(req.Note) == "" {
				return s.finish(ctx, profile, carb.NoContentOutcome(carb.ReasonInaccessible), "", "", false), nil
			}
			common.LogWarn("Continuing without recipe page", zap.String("url", url), zap.Error(err))
		}
	}

	prompt := userPrompt(profile, len(req.Images), req.URL, pageText, req.Note)
	resp, err := s.ai.ProcessRequest(ctx, &aiservice.Request{
		SystemPrompt: systemPrompt(profile),
		Prompt:       prompt,
		Images:       req.Images,
		Cacheable: func(content string) bool {
			return s.newDecoder(profile).Decode(content).Kind != carb.KindDecodeFailure
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", profile.Name, err)
	}

	outcome := s.decode(profile, resp.Content)
	return s.finish(ctx, profile, outcome, resp.Content, resp.Model, resp.CacheHit), nil
}

// DecodeRaw 直接解碼一段模型文字，不呼叫模型也不寫紀錄
func (s *Service) DecodeRaw(profileName, text string) (*Analysis, error) {
	profile, ok := carb.Lookup(profileName)
	if !ok {
		return nil, common.ErrUnknownProfile.Wrap(fmt.Errorf("profile %q", profileName))
	}

	outcome := s.decode(profile, text)
	return &Analysis{
		ID:              common.GenerateUUID(),
		Profile:         profile.Name,
		Outcome:         outcome,
		ConfidenceLabel: confidenceLabel(outcome),
		Raw:             text,
	}, nil
}

func (s *Service) validate(req *Request) (*carb.Profile, error) {
	profile, ok := carb.Lookup(req.Profile)
	if !ok {
		return nil, common.ErrUnknownProfile.Wrap(fmt.Errorf("profile %q", req.Profile))
	}

	if s.maxImages > 0 && len(req.Images) > s.maxImages {
		return nil, common.ErrTooManyImages.Wrap(fmt.Errorf("got %d images, maximum is %d", len(req.Images), s.maxImages))
	}
	for i, img := range req.Images {
		if strings.TrimSpace(img) == "" {
			return nil, common.NewValidationError(fmt.Sprintf("image %d is empty", i+1))
		}
	}

	if profile.HasPortions() {
		if len(req.Images) == 0 && strings.TrimSpace(req.URL) == "" && strings.TrimSpace(req.Note) == "" {
			return nil, common.NewValidationError("recipe analysis needs images, a url or recipe text")
		}
		return profile, nil
	}

	if len(req.Images) == 0 {
		return nil, common.NewValidationError("meal analysis needs at least one image")
	}
	return profile, nil
}

func (s *Service) fetchPage(ctx context.Context, url string) (string, error) {
	if s.pages == nil {
		return "", fmt.Errorf("%w: page fetching is disabled", webpage.ErrPageInaccessible)
	}
	return s.pages.FetchText(ctx, url)
}

func (s *Service) decode(profile *carb.Profile, text string) carb.Outcome {
	outcome := s.newDecoder(profile).Decode(text)
	if outcome.Kind == carb.KindDecodeFailure {
		common.LogWarn("Model response could not be decoded",
			zap.String("profile", profile.Name),
			zap.Error(outcome.Err),
			zap.String("response_preview", common.Truncate(text, 200)),
		)
	}
	return outcome
}

func (s *Service) newDecoder(profile *carb.Profile) *carb.Decoder {
	return carb.NewDecoder(profile, carb.WithMaxBytes(s.maxResponseBytes))
}

func (s *Service) finish(ctx context.Context, profile *carb.Profile, outcome carb.Outcome, raw, model string, cacheHit bool) *Analysis {
	a := &Analysis{
		ID:              common.GenerateUUID(),
		Profile:         profile.Name,
		Outcome:         outcome,
		ConfidenceLabel: confidenceLabel(outcome),
		Model:           model,
		CacheHit:        cacheHit,
		Raw:             raw,
	}

	if outcome.Kind == carb.KindResult && s.history != nil {
		entry := &history.Entry{ID: a.ID, Profile: profile.Name, Model: model, Result: outcome.Result}
		if err := s.history.Save(ctx, entry); err != nil {
			common.LogError("Failed to save analysis history", zap.String("id", a.ID), zap.Error(err))
		}
	}

	common.LogInfo("Analysis finished",
		zap.String("id", a.ID),
		zap.String("profile", profile.Name),
		zap.String("kind", string(outcome.Kind)),
		zap.Bool("cache_hit", cacheHit),
	)
	return a
}

func confidenceLabel(outcome carb.Outcome) string {
	if outcome.Kind != carb.KindResult {
		return ""
	}
	return carb.ConfidenceLabel(outcome.Result.Confidence)
}

