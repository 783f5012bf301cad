package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmorten/a11y-auditor/internal/audit"
)

func TestPerceivableFailingDocument(t *testing.T) {
	t.Parallel()

	// Missing lang and title, an unlabelled image, a skipped heading
	// level, and sensory-only link text.
	doc := parseHTML(t, `<html><head></head><body>
		<h1>Main</h1>
		<h3>Skipped</h3>
		<img src="chart.png">
		<p>To continue, click here on the left side.</p>
	</body></html>`)

	res := Perceivable().Evaluate(doc)
	require.Less(t, res.Score, 70)
	require.Equal(t, audit.GradeNotCompliant, res.Grade)
	require.Len(t, res.Issues, 11)
}

func TestCheckImageAlt(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body><img src="a.png" alt="A chart"><img src="b.png" alt=""><img src="c.png"></body>`)
	res := checkImageAlt(doc)
	require.InDelta(t, 2.0/3.0, res.Score, 1e-9)
	require.Equal(t, 2.0, res.Issue.Passed)
	require.Equal(t, 3.0, res.Issue.Total)
	require.Contains(t, res.Issue.Message, "1 decorative")
}

func TestCheckFormControlsNamed(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body>
		<input type="hidden" name="csrf">
		<label for="email">Email</label><input id="email" type="email">
		<input type="text" aria-label="Search">
		<button>Save</button>
		<input type="text">
	</body>`)
	res := checkFormControlsNamed(doc)
	require.InDelta(t, 3.0/4.0, res.Score, 1e-9)
}

func TestCheckMediaAlternatives(t *testing.T) {
	t.Parallel()

	withTrack := parseHTML(t, `<body><video><track kind="captions" src="c.vtt"></video></body>`)
	require.Equal(t, 1.0, checkMediaAlternatives(withTrack).Score)

	withTranscript := parseHTML(t, `<body><div><audio src="x.mp3"></audio><a href="/t">Read the transcript</a></div></body>`)
	require.Equal(t, 1.0, checkMediaAlternatives(withTranscript).Score)

	bare := parseHTML(t, `<body><video src="v.mp4"></video></body>`)
	require.Equal(t, 0.0, checkMediaAlternatives(bare).Score)
}

func TestCheckHeadingStructure(t *testing.T) {
	t.Parallel()

	good := parseHTML(t, `<body><h1>A</h1><h2>B</h2><h3>C</h3></body>`)
	require.Equal(t, 1.0, checkHeadingStructure(good).Score)

	doubleH1 := parseHTML(t, `<body><h1>A</h1><h1>B</h1></body>`)
	require.InDelta(t, 0.7, checkHeadingStructure(doubleH1).Score, 1e-9)

	skipped := parseHTML(t, `<body><h1>A</h1><h4>D</h4></body>`)
	require.InDelta(t, 0.7, checkHeadingStructure(skipped).Score, 1e-9)

	both := parseHTML(t, `<body><h2>B</h2><h5>E</h5></body>`)
	// No h1 plus a level skip stacks both penalties. The first heading
	// being h2 is itself a skip from level 0.
	require.InDelta(t, 0.4, checkHeadingStructure(both).Score, 1e-9)

	none := parseHTML(t, `<body><p>text</p></body>`)
	require.Equal(t, 1.0, checkHeadingStructure(none).Score)
}

func TestCheckListStructure(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body>
		<ul><li>a</li></ul>
		<ol></ol>
		<dl><dt>term</dt><dd>def</dd></dl>
	</body>`)
	res := checkListStructure(doc)
	require.InDelta(t, 2.0/3.0, res.Score, 1e-9)
}

func TestCheckTableHeaders(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body>
		<table><tr><th>H</th></tr></table>
		<table><caption>Data</caption><tr><td>x</td></tr></table>
		<table><tr><td>x</td></tr></table>
	</body>`)
	res := checkTableHeaders(doc)
	require.InDelta(t, 2.0/3.0, res.Score, 1e-9)
}

func TestCheckSensoryLanguage(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body><p>Click here, then press the red button below.</p></body>`)
	res := checkSensoryLanguage(doc)
	require.InDelta(t, 0.7, res.Score, 1e-9)

	clean := parseHTML(t, `<body><p>Select Submit to continue.</p></body>`)
	require.Equal(t, 1.0, checkSensoryLanguage(clean).Score)
}

func TestCheckColourOnlyLinks(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body><a href="/x" style="color:red;text-decoration:none">x</a></body>`)
	require.InDelta(t, 0.7, checkColourOnlyLinks(doc).Score, 1e-9)

	underlined := parseHTML(t, `<body><a href="/x" style="color:red">x</a></body>`)
	require.Equal(t, 1.0, checkColourOnlyLinks(underlined).Score)
}

func TestCheckAudioControl(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body><audio autoplay src="x.mp3"></audio></body>`)
	require.Equal(t, 0.0, checkAudioControl(doc).Score)

	controlled := parseHTML(t, `<body><audio controls src="x.mp3"></audio></body>`)
	require.Equal(t, 1.0, checkAudioControl(controlled).Score)
}
