package release

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/dependency"
	"github.com/mongodb/amboy/job"
	"github.com/mongodb/amboy/registry"
	"github.com/pkg/errors"

	"github.com/c0m1c5an5/wheelwright"
)

const wheelJobName = "build-wheel"

// wheelJob assembles the wheel for a single platform from an already
// fetched and verified upstream archive. It implements the amboy.Job
// interface so that per-platform assembly runs through a queue and
// one platform's failure never aborts the others.
type wheelJob struct {
	Conf        *ReleaseConfig `bson:"conf" json:"conf" yaml:"conf"`
	Tag         string         `bson:"tag" json:"tag" yaml:"tag"`
	PlatformTag string         `bson:"platform_tag" json:"platform_tag" yaml:"platform_tag"`
	ArchivePath string         `bson:"archive_path" json:"archive_path" yaml:"archive_path"`
	WorkDir     string         `bson:"work_dir" json:"work_dir" yaml:"work_dir"`
	WheelFile   string         `bson:"wheel_file" json:"wheel_file" yaml:"wheel_file"`
	*job.Base   `bson:"metadata" json:"metadata" yaml:"metadata"`
}

func init() {
	registry.AddJobType(wheelJobName, func() amboy.Job {
		return makeWheelJob()
	})
}

func makeWheelJob() *wheelJob {
	j := &wheelJob{
		Base: &job.Base{
			JobType: amboy.JobType{
				Name:    wheelJobName,
				Version: 1,
			},
		},
	}
	j.SetDependency(dependency.NewAlways())

	return j
}

// NewWheelJob constructs a wheel building job for one platform.
func NewWheelJob(conf *ReleaseConfig, tag, platformTag, archivePath, workDir string) amboy.Job {
	j := makeWheelJob()

	j.Conf = conf
	j.Tag = tag
	j.PlatformTag = platformTag
	j.ArchivePath = archivePath
	j.WorkDir = workDir
	j.SetID(fmt.Sprintf("%s.%s.%s.%d", wheelJobName, tag, platformTag, job.GetNumber()))

	return j
}

// Run unpacks the upstream archive and assembles the platform wheel.
func (j *wheelJob) Run(ctx context.Context) {
	defer j.MarkComplete()

	version, err := wheelwright.NewReleaseVersion(j.Tag)
	if err != nil {
		j.AddError(errors.Wrapf(err, "parsing release tag for '%s'", j.PlatformTag))
		return
	}

	// two platform tags may share one upstream archive, so every
	// job extracts into its own directory
	sourceDir := filepath.Join(j.WorkDir, "src-"+uuid.New().String())
	if err := extractZip(j.ArchivePath, sourceDir); err != nil {
		j.AddError(errors.Wrapf(err, "unpacking archive for '%s'", j.PlatformTag))
		return
	}

	wheel, err := BuildWheel(WheelOptions{
		Conf:        j.Conf,
		Version:     version,
		PlatformTag: j.PlatformTag,
		SourceDir:   sourceDir,
		WorkDir:     j.WorkDir,
	})
	if err != nil {
		j.AddError(errors.Wrapf(err, "building wheel for '%s'", j.PlatformTag))
		return
	}

	j.WheelFile = wheel
}
