package pipeline

// Job is one expanded cell of the build matrix: a version crossed with an
// env matrix row. Jobs run in declaration order, versions outermost.
type Job struct {
	Index   int
	Key     string
	Version string
	EnvRow  string
	Env     []string
}

// Jobs expands the descriptor matrix. Each axis defaults to a single empty
// slot, so a descriptor with no versions and no env matrix yields one job.
func (d *Descriptor) Jobs() []Job {
	versions := []string(d.Versions)
	if len(versions) == 0 {
		versions = []string{""}
	}
	rows := []string{""}
	var global []string
	if d.Env != nil {
		if len(d.Env.Matrix) > 0 {
			rows = d.Env.Matrix
		}
		global = d.Env.Global
	}

	jobs := make([]Job, 0, len(versions)*len(rows))
	for _, version := range versions {
		for _, row := range rows {
			env := make([]string, 0, len(global)+1)
			env = append(env, global...)
			if row != "" {
				env = append(env, row)
			}
			jobs = append(jobs, Job{
				Index:   len(jobs),
				Key:     d.jobKey(version, row),
				Version: version,
				EnvRow:  row,
				Env:     env,
			})
		}
	}
	return jobs
}

// jobKey builds the human-readable job name, e.g. "python 3.8 / DB=postgres".
func (d *Descriptor) jobKey(version, row string) string {
	key := d.Language
	if version != "" {
		if key != "" {
			key += " " + version
		} else {
			key = version
		}
	}
	if key == "" {
		key = "default"
	}
	if row != "" {
		key += " / " + row
	}
	return key
}
