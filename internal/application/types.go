package application

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
)

type Config struct {
	ServiceName string

	// Worker pool and recovery sweep.
	WorkerCount      int
	DetectionTimeout time.Duration // 0 disables the per-call bound
	StaleAfter       time.Duration
	SweepInterval    time.Duration
	MaxTaskRetries   int

	// Gateway.
	ServiceCacheTTL time.Duration
	UsageBufferSize int
}

type Actor struct {
	SubjectID string
	Role      string
	RequestID string
}

func (a Actor) isAdmin() bool {
	return a.Role == "admin"
}

type SubmitTaskInput struct {
	TaskName            string
	FileReference       string
	ModelName           string
	ConfidenceThreshold float64
	IoUThreshold        float64
	MaxDetections       int
	ClassFilter         []int
}

type CreateServiceInput struct {
	ServiceName         string
	Description         string
	ModelName           string
	ConfidenceThreshold float64
	ClassFilter         []int
	RateLimitPerMinute  int
	MaxPayloadBytes     int64
	AllowedFormats      []string
}

type IssueTokenInput struct {
	ServiceID   string
	DisplayName string
	ExpiresIn   time.Duration // 0 means the token never expires
}

type IssuedToken struct {
	Token     domain.ServiceToken
	RawSecret string
}

// usageOutcome is what one gateway call contributes to the usage log.
// bumpToken is false for calls the admission checks turned away; admitted
// calls count against the token even when execution fails.
type usageOutcome struct {
	record    domain.UsageRecord
	bumpToken bool
}

type Service struct {
	cfg Config

	tasks    ports.TaskRepository
	services ports.ServiceRepository
	tokens   ports.TokenRepository
	usage    ports.UsageRepository

	queue    ports.TaskQueue
	detector ports.Detector
	files    ports.FileStore
	limiter  ports.RateLimiter
	vault    ports.SecretVault

	serviceCache *expirable.LRU[string, domain.PublishedService]
	usageCh      chan usageOutcome
	nowFn        func() time.Time
}

type Dependencies struct {
	Config Config

	Tasks    ports.TaskRepository
	Services ports.ServiceRepository
	Tokens   ports.TokenRepository
	Usage    ports.UsageRepository

	Queue    ports.TaskQueue
	Detector ports.Detector
	Files    ports.FileStore
	Limiter  ports.RateLimiter
	Vault    ports.SecretVault
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "vision-box"
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.MaxTaskRetries <= 0 {
		cfg.MaxTaskRetries = domain.MaxTaskRetries
	}
	if cfg.ServiceCacheTTL <= 0 {
		cfg.ServiceCacheTTL = 30 * time.Second
	}
	if cfg.UsageBufferSize <= 0 {
		cfg.UsageBufferSize = 256
	}
	return &Service{
		cfg:          cfg,
		tasks:        deps.Tasks,
		services:     deps.Services,
		tokens:       deps.Tokens,
		usage:        deps.Usage,
		queue:        deps.Queue,
		detector:     deps.Detector,
		files:        deps.Files,
		limiter:      deps.Limiter,
		vault:        deps.Vault,
		serviceCache: expirable.NewLRU[string, domain.PublishedService](1024, nil, cfg.ServiceCacheTTL),
		usageCh:      make(chan usageOutcome, cfg.UsageBufferSize),
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}
