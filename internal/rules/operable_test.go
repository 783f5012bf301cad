package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmorten/a11y-auditor/internal/audit"
)

func TestOperableWellFormedDocument(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<html lang="en"><head><title>Store</title></head><body>
		<a href="#main">Skip to content</a>
		<nav><a href="/products">Browse products</a></nav>
		<main id="main">
			<h1>Products</h1>
			<label for="q">Search products</label><input id="q" type="text">
			<button>Search now</button>
		</main>
	</body></html>`)

	res := Operable().Evaluate(doc)
	require.GreaterOrEqual(t, res.Score, 85)
	require.Contains(t, []audit.Grade{audit.GradeAA, audit.GradeAAA}, res.Grade)
	require.Len(t, res.Issues, 12)
}

func TestCheckKeyboardAccessible(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body>
		<a href="/a">first link</a>
		<button tabindex="0">ok</button>
		<input type="text" tabindex="-1">
	</body>`)
	res := checkKeyboardAccessible(doc)
	require.InDelta(t, 2.0/3.0, res.Score, 1e-9)
}

func TestCheckNoKeyboardTrap(t *testing.T) {
	t.Parallel()

	trapped := parseHTML(t, `<body><div tabindex="-5">trap</div></body>`)
	require.Equal(t, 0.0, checkNoKeyboardTrap(trapped).Score)

	fine := parseHTML(t, `<body><div tabindex="-1">skipped</div></body>`)
	require.Equal(t, 1.0, checkNoKeyboardTrap(fine).Score)
}

func TestCheckTimingAdjustable(t *testing.T) {
	t.Parallel()

	fast := parseHTML(t, `<head><meta http-equiv="refresh" content="5;url=/next"></head>`)
	require.Equal(t, 0.0, checkTimingAdjustable(fast).Score)

	slow := parseHTML(t, `<head><meta http-equiv="refresh" content="86400"></head>`)
	require.Equal(t, 1.0, checkTimingAdjustable(slow).Score)

	none := parseHTML(t, `<head><meta charset="utf-8"></head>`)
	require.Equal(t, 1.0, checkTimingAdjustable(none).Score)
}

func TestCheckPauseStopHide(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body><video autoplay src="v.mp4"></video></body>`)
	require.InDelta(t, 0.7, checkPauseStopHide(doc).Score, 1e-9)
}

func TestCheckFlashingContent(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body><div class="banner-flash">sale</div></body>`)
	require.Equal(t, 0.0, checkFlashingContent(doc).Score)

	calm := parseHTML(t, `<body><div class="banner">sale</div></body>`)
	require.Equal(t, 1.0, checkFlashingContent(calm).Score)
}

func TestCheckBypassBlocks(t *testing.T) {
	t.Parallel()

	withNav := parseHTML(t, `<body><nav><a href="/x">browse catalogue</a></nav></body>`)
	require.Equal(t, 1.0, checkBypassBlocks(withNav).Score)

	// Interactive content with no way to bypass repeated blocks.
	bare := parseHTML(t, `<body><a href="/a">alpha page</a><a href="/b">beta page</a></body>`)
	require.Equal(t, 0.0, checkBypassBlocks(bare).Score)

	empty := parseHTML(t, `<body><p>static text only</p></body>`)
	require.Equal(t, 1.0, checkBypassBlocks(empty).Score)
}

func TestCheckFocusOrder(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body><input tabindex="1"><input tabindex="3"><input tabindex="-1"></body>`)
	res := checkFocusOrder(doc)
	require.InDelta(t, 2.0/3.0, res.Score, 1e-9)

	natural := parseHTML(t, `<body><input><input></body>`)
	require.Equal(t, 1.0, checkFocusOrder(natural).Score)
}

func TestCheckLinkPurpose(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body>
		<a href="/a">Read the full pricing guide</a>
		<a href="/b">click here</a>
		<a href="/c" aria-label="Contact support">more</a>
		<a href="/d">FAQ</a>
	</body>`)
	res := checkLinkPurpose(doc)
	// "click here" and "more" are vague even with attributes; "FAQ" is
	// short but not on the vague list and carries no attribute.
	require.InDelta(t, 1.0/4.0, res.Score, 1e-9)
}

func TestCheckHeadingsAndLabels(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body>
		<h1>Account settings</h1>
		<h2>Go</h2>
		<label for="a">Email address</label>
		<label for="b">X</label>
	</body>`)
	res := checkHeadingsAndLabels(doc)
	require.InDelta(t, 2.0/4.0, res.Score, 1e-9)
}

func TestCheckLabelInName(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body>
		<button aria-label="Submit order now">Submit order</button>
		<button aria-label="Go">Cancel everything</button>
	</body>`)
	res := checkLabelInName(doc)
	require.InDelta(t, 1.0/2.0, res.Score, 1e-9)
}

func TestCheckTargetSize(t *testing.T) {
	t.Parallel()

	doc := parseHTML(t, `<body>
		<a href="/x" style="width:1px;height:1px">x</a>
		<button style="padding:4px">ok</button>
	</body>`)
	require.InDelta(t, 0.9, checkTargetSize(doc).Score, 1e-9)
}
