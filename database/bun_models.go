package database

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// BunConversion represents the conversions table for Bun ORM
type BunConversion struct {
	bun.BaseModel `bun:"table:conversions,alias:c"`

	ID         string    `bun:"id,pk"` // ULID as string
	Source     string    `bun:"source,notnull"`
	Pages      int       `bun:"pages,notnull,default:0"`
	Resolution int       `bun:"resolution,notnull,default:144"`
	Format     string    `bun:"format,notnull,default:'jpg'"`
	OutputDir  string    `bun:"output_dir,notnull"`
	Outputs    string    `bun:"outputs,nullzero"` // newline-joined file list
	DurationMS int64     `bun:"duration_ms,default:0"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ToConversion converts BunConversion to Conversion
func (bc *BunConversion) ToConversion() (*Conversion, error) {
	parsedULID, err := ulid.Parse(bc.ID)
	if err != nil {
		return nil, err
	}

	var outputs []string
	if bc.Outputs != "" {
		outputs = strings.Split(bc.Outputs, "\n")
	}

	return &Conversion{
		ID:         parsedULID,
		Source:     bc.Source,
		Pages:      bc.Pages,
		Resolution: bc.Resolution,
		Format:     bc.Format,
		OutputDir:  bc.OutputDir,
		Outputs:    outputs,
		DurationMS: bc.DurationMS,
		CreatedAt:  bc.CreatedAt,
	}, nil
}

// FromConversion converts Conversion to BunConversion
func FromConversion(conv *Conversion) *BunConversion {
	return &BunConversion{
		ID:         conv.ID.String(),
		Source:     conv.Source,
		Pages:      conv.Pages,
		Resolution: conv.Resolution,
		Format:     conv.Format,
		OutputDir:  conv.OutputDir,
		Outputs:    strings.Join(conv.Outputs, "\n"),
		DurationMS: conv.DurationMS,
		CreatedAt:  conv.CreatedAt,
	}
}

// BunServerConfig represents the server_config table for Bun ORM
type BunServerConfig struct {
	bun.BaseModel `bun:"table:server_config,alias:sc"`

	ID                int       `bun:"id,pk"`
	ListenAddrIP      string    `bun:"listen_addr_ip,default:''"`
	ListenAddrPort    string    `bun:"listen_addr_port,notnull,default:'8000'"`
	IngressPath       string    `bun:"ingress_path,notnull,default:''"`
	IngressInterval   int       `bun:"ingress_interval,notnull,default:10"`
	IngressDelete     bool      `bun:"ingress_delete,notnull,default:true"`
	OutputPath        string    `bun:"output_path,notnull,default:''"`
	DefaultResolution int       `bun:"default_resolution,notnull,default:144"`
	DefaultFormat     string    `bun:"default_format,notnull,default:'jpg'"`
	RenderEngine      string    `bun:"render_engine,notnull,default:'pdfium'"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BunJob represents the jobs table for Bun ORM
type BunJob struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          string     `bun:"id,pk"` // ULID as string
	Type        string     `bun:"type,notnull"`
	Status      string     `bun:"status,default:'pending'"`
	Progress    int        `bun:"progress,default:0"`
	CurrentStep string     `bun:"current_step,default:''"`
	TotalSteps  int        `bun:"total_steps,default:0"`
	Message     string     `bun:"message,default:''"`
	Error       string     `bun:"error,nullzero"`
	Result      string     `bun:"result,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at,nullzero"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
}

// ToJob converts BunJob to Job
func (bj *BunJob) ToJob() (*Job, error) {
	parsedULID, err := ulid.Parse(bj.ID)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          parsedULID,
		Type:        JobType(bj.Type),
		Status:      JobStatus(bj.Status),
		Progress:    bj.Progress,
		CurrentStep: bj.CurrentStep,
		TotalSteps:  bj.TotalSteps,
		Message:     bj.Message,
		Error:       bj.Error,
		Result:      bj.Result,
		CreatedAt:   bj.CreatedAt,
		UpdatedAt:   bj.UpdatedAt,
		StartedAt:   bj.StartedAt,
		CompletedAt: bj.CompletedAt,
	}, nil
}

// FromJob converts Job to BunJob
func FromJob(job *Job) *BunJob {
	return &BunJob{
		ID:          job.ID.String(),
		Type:        string(job.Type),
		Status:      string(job.Status),
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		TotalSteps:  job.TotalSteps,
		Message:     job.Message,
		Error:       job.Error,
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}
