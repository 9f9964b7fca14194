package bildsok

import (
	"context"
	"errors"
	"testing"
)

type fakeChecker struct {
	tagged map[string]bool
	calls  int
}

func (f *fakeChecker) HasMeaningfulMetadata(path string) bool {
	f.calls++
	return f.tagged[path]
}

type fakeWriter struct {
	written []string
	ok      bool
}

func (f *fakeWriter) Write(path, _, _ string, _ Mode) bool {
	f.written = append(f.written, path)
	return f.ok
}

type fakeAnalyzer struct {
	calls int
	err   error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string, _ Mode) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "主要内容：测试图片\n对象：测试 对象", nil
}

func pipelineFixture(t *testing.T, images []string) (string, *fakeChecker, *fakeWriter, *fakeAnalyzer, *Pipeline) {
	t.Helper()
	dir := t.TempDir()
	touchFiles(t, dir, images)

	checker := &fakeChecker{tagged: map[string]bool{}}
	writer := &fakeWriter{ok: true}
	analyzer := &fakeAnalyzer{}
	opened := false

	p := &Pipeline{
		Verifier: checker,
		Writer:   writer,
		OpenAnalyzer: func(_ context.Context) (DescriptionSource, error) {
			if opened {
				t.Error("analyzer opened twice")
			}
			opened = true
			return analyzer, nil
		},
		Recursive: true,
	}
	return dir, checker, writer, analyzer, p
}

func TestPipelineSkipsTagged(t *testing.T) {
	dir, checker, writer, analyzer, p := pipelineFixture(t, []string{"a.jpg", "b.jpg", "c.jpg"})
	checker.tagged[dir+"/a.jpg"] = true

	st, err := p.Run(context.Background(), []string{dir})
	if err != nil {
		t.Fatal(err)
	}

	if st.Found != 3 || st.Skipped != 1 || st.Analyzed != 2 || st.Written != 2 {
		t.Errorf("Stats = %+v, want 3 found / 1 skipped / 2 analyzed / 2 written", st)
	}
	if analyzer.calls != 2 {
		t.Errorf("analyzer called %d times, want 2", analyzer.calls)
	}
	if len(writer.written) != 2 {
		t.Errorf("writer called for %v, want 2 files", writer.written)
	}
}

func TestPipelineForceReprocessesAll(t *testing.T) {
	dir, checker, _, analyzer, p := pipelineFixture(t, []string{"a.jpg", "b.jpg"})
	checker.tagged[dir+"/a.jpg"] = true
	checker.tagged[dir+"/b.jpg"] = true
	p.Force = true

	st, err := p.Run(context.Background(), []string{dir})
	if err != nil {
		t.Fatal(err)
	}

	if st.Skipped != 0 || st.Written != 2 {
		t.Errorf("Stats = %+v, want 0 skipped / 2 written", st)
	}
	if checker.calls != 0 {
		t.Errorf("verifier consulted %d times in force mode, want 0", checker.calls)
	}
	if analyzer.calls != 2 {
		t.Errorf("analyzer called %d times, want 2", analyzer.calls)
	}
}

func TestPipelineDryRunDoesNotWrite(t *testing.T) {
	dir, checker, writer, analyzer, p := pipelineFixture(t, []string{"a.jpg", "b.jpg"})
	checker.tagged[dir+"/a.jpg"] = true
	p.DryRun = true

	st, err := p.Run(context.Background(), []string{dir})
	if err != nil {
		t.Fatal(err)
	}

	// Dry runs preview everything, including already-tagged images.
	if st.Analyzed != 2 {
		t.Errorf("Stats = %+v, want 2 analyzed", st)
	}
	if len(writer.written) != 0 {
		t.Errorf("writer called in dry-run mode: %v", writer.written)
	}
	if analyzer.calls != 2 {
		t.Errorf("analyzer called %d times, want 2", analyzer.calls)
	}
}

func TestPipelineAnalyzerIsLazy(t *testing.T) {
	dir, checker, writer, _, p := pipelineFixture(t, []string{"a.jpg"})
	checker.tagged[dir+"/a.jpg"] = true
	p.OpenAnalyzer = func(_ context.Context) (DescriptionSource, error) {
		t.Error("analyzer opened although every image was skipped")
		return nil, errors.New("unreachable")
	}

	st, err := p.Run(context.Background(), []string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if st.Skipped != 1 || len(writer.written) != 0 {
		t.Errorf("Stats = %+v, want a single skip", st)
	}
}

func TestPipelineAnalyzerInitFailureAborts(t *testing.T) {
	dir, _, _, _, p := pipelineFixture(t, []string{"a.jpg"})
	p.OpenAnalyzer = func(_ context.Context) (DescriptionSource, error) {
		return nil, errors.New("no API key")
	}

	if _, err := p.Run(context.Background(), []string{dir}); err == nil {
		t.Error("Run() = nil error, want analyzer init failure")
	}
}

func TestPipelineAnalysisFailureContinues(t *testing.T) {
	dir, _, writer, analyzer, p := pipelineFixture(t, []string{"a.jpg", "b.jpg"})
	analyzer.err = errors.New("model unavailable")

	st, err := p.Run(context.Background(), []string{dir})
	if err != nil {
		t.Fatal(err)
	}

	if analyzer.calls != 2 {
		t.Errorf("analyzer called %d times, want 2 (batch continues past failures)", analyzer.calls)
	}
	if st.Analyzed != 0 || len(writer.written) != 0 {
		t.Errorf("Stats = %+v, want nothing analyzed or written", st)
	}
}

func TestPipelineMultipleDirs(t *testing.T) {
	dir1, _, writer, _, p := pipelineFixture(t, []string{"a.jpg", "b.jpg"})
	dir2 := t.TempDir()
	touchFiles(t, dir2, []string{"c.jpg", "d.jpg", "e.jpg"})

	st, err := p.Run(context.Background(), []string{dir1, dir2})
	if err != nil {
		t.Fatal(err)
	}

	if st.Found != 5 || st.Written != 5 {
		t.Errorf("Stats = %+v, want 5 found / 5 written", st)
	}
	if len(writer.written) != 5 {
		t.Errorf("writer called for %v, want 5 files", writer.written)
	}
}

func TestPipelineMissingDir(t *testing.T) {
	_, _, _, _, p := pipelineFixture(t, []string{"a.jpg"})

	if _, err := p.Run(context.Background(), []string{"/nonexistent/dir"}); err == nil {
		t.Error("Run() = nil error for missing directory")
	}
}
