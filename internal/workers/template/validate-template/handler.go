package validatetemplate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"template-validator/internal/common/camunda"
	"template-validator/internal/common/config"
	"template-validator/internal/common/errors"
	"template-validator/internal/common/logger"
	"template-validator/internal/common/metrics"
	"template-validator/internal/common/observability"
	"template-validator/internal/common/validation"
	"template-validator/internal/validate"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "template.validate"

	configKey = "template-validate"
)

// templateFields are fetched alongside the template variable for jobs that carry the
// template at the top level.
var templateFields = []string{"template_id", "title", "content", "button_title"}

type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	service      validate.Service
	validator    *validation.SchemaValidator
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
	jobWorker    *camunda.Worker
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Camunda       *camunda.Client
	Service       validate.Service
	Validator     *validation.SchemaValidator
	Observability *observability.Observability
	CustomConfig  *Config
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", configKey, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("validate service is required for %s", configKey)
	}
	if opts.Validator == nil {
		return nil, fmt.Errorf("schema validator is required for %s", configKey)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}

	obs := opts.Observability
	if obs == nil {
		obs = &observability.Observability{}
	}

	return &Handler{
		config:       workerConfig,
		logger:       loggerInstance,
		camunda:      opts.Camunda,
		service:      opts.Service,
		validator:    opts.Validator,
		errorHandler: errors.NewErrorHandler(loggerInstance),
		obs:          obs,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	}()

	h.logger.Info("Processing template validation job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             TaskType,
	})

	output, err := h.run(job)

	// Commands get their own deadline: the job context may already be spent.
	ctx, cancel := context.WithTimeout(context.Background(), h.config.CommandTimeout)
	defer cancel()

	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	h.obs.RecordRequest(ctx, "worker", "ok")
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

// run parses and executes the job within the worker timeout.
func (h *Handler) run(job entities.Job) (*Output, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, input)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}

	document := variables
	if raw, exists := variables[h.config.TemplateVariable]; exists {
		nested, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.NewInputParsingFailedError(
				fmt.Errorf("variable %q must be an object, got %T", h.config.TemplateVariable, raw),
			)
		}
		document = nested
	}

	result := h.validator.ValidateInput(document)
	if !result.Valid {
		return nil, errors.NewTemplateValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}

	body, err := json.Marshal(document)
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}

	templateID, _ := document["template_id"].(string)

	return &Input{
		RequestID:  fmt.Sprintf("job-%d", job.GetKey()),
		TemplateID: templateID,
		Body:       body,
	}, nil
}

// Execute runs one validation for the job. The classifier is called exactly once.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	resp, err := h.service.Validate(ctx, validate.ValidateRequest{
		RequestID:  input.RequestID,
		TemplateID: input.TemplateID,
		Body:       input.Body,
	})
	if err != nil {
		return nil, err
	}

	var verdict interface{}
	if err := json.Unmarshal(resp.Body, &verdict); err != nil {
		return nil, errors.NewClassificationFailedError(fmt.Errorf("decode classifier response: %w", err))
	}

	return &Output{
		Result:     resp.Result(),
		Validation: verdict,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(output.variables())
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}

	send := func(ctx context.Context) (interface{}, error) {
		return request.Send(ctx)
	}
	if h.camunda != nil {
		_, err = h.camunda.ExecuteWithRetry(ctx, send, "complete job")
	} else {
		_, err = send(ctx)
	}

	if err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}

	h.logger.Info("Successfully completed template validation", map[string]interface{}{
		"jobKey": job.GetKey(),
		"result": output.Result,
		"worker": TaskType,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.AsStandardError(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordRequest(ctx, "worker", string(stdErr.Code))

	if sendErr := h.errorHandler.HandleJobError(ctx, client, job, stdErr); sendErr != nil {
		h.logger.Error("Failed to report job failure to Camunda", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  sendErr.Error(),
			"worker": TaskType,
		})
	}
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", map[string]interface{}{
			"worker": TaskType,
		})
		return nil
	}

	jobWorker, err := camunda.NewWorker(h.camunda, camunda.WorkerOptions{
		TaskType:       TaskType,
		MaxJobsActive:  h.config.MaxJobsActive,
		Timeout:        h.config.Timeout,
		FetchVariables: h.fetchVariables(),
		Handler:        h.Handle,
	}, h.logger)
	if err != nil {
		return fmt.Errorf("register %s: %w", TaskType, err)
	}

	h.jobWorker = jobWorker
	return nil
}

func (h *Handler) fetchVariables() []string {
	return append([]string{h.config.TemplateVariable}, templateFields...)
}

func (h *Handler) Close() {
	h.jobWorker.Close()
	h.jobWorker = nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}

func (o *Output) variables() map[string]interface{} {
	return map[string]interface{}{
		"validation":       o.Validation,
		"validationResult": o.Result,
	}
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		workerCfg := config.GetWorkerConfig(appConfig, configKey)
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if workerCfg.Timeout > 0 {
			cfg.Timeout = config.GetDuration(workerCfg.Timeout)
		}
		if workerCfg.TemplateVariable != "" {
			cfg.TemplateVariable = workerCfg.TemplateVariable
		}
		if appConfig.Camunda.RequestTimeout > 0 {
			cfg.CommandTimeout = config.GetDuration(appConfig.Camunda.RequestTimeout)
		}
	}

	return cfg
}
