// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog entry.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	EntryNotFoundId
	ModuleNotFoundId
	DynamicRequireId
	SyntaxErrorId
	TransformFailedId
	AssetWriteFailedId
	WatchFailedId
	ScriptFailedId
)

type (
	// MarkdownMsg is the Markdown body of an issue.
	MarkdownMsg string

	// HttpLink is a documentation link rendered under "See also".
	HttpLink string

	// Issue is a rendered explanation of a class of failure with steps the
	// user can take.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue with glamour using the given style ("" picks
// the glamour default).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if links := append(i.DocLinks(), i.extLinks...); len(links) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range links {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

minipack reads ` + "`minipack.cue`" + ` from the current directory, or the file
passed with ` + "`--config`" + `. JSON, YAML and TOML files work too.

## Things you can try
- Print the effective configuration:
~~~
$ minipack config show
~~~
- Check the field named in the error against the schema: ` + "`entry`" + `,
  ` + "`output.filename`" + `, ` + "`module.rules`" + `...
- Command line overrides use dotted keys:
~~~
$ minipack build output.path=build mode=production
~~~`,
	}

	entryNotFoundIssue = &Issue{
		id: EntryNotFoundId,
		mdMsg: `
# Entry file not found

An entry point or a module file could not be read.

## Things you can try
- Entry paths are relative to ` + "`context`" + ` (the config file directory by default)
- Check the spelling of the ` + "`entry`" + ` map in your configuration`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found

A ` + "`require`" + ` call names a module that does not exist.

## How requests are resolved
1. Relative requests (` + "`./x`" + `, ` + "`../x`" + `) start at the requiring file
2. Other requests are looked up in ` + "`node_modules`" + ` of every parent directory
3. Each candidate is tried as is, then with every ` + "`resolve.extensions`" + ` suffix,
   then as a directory (` + "`package.json`" + ` main, then ` + "`index`" + `)

## Things you can try
- Fix the request or create the missing file
- Add the extension to ` + "`resolve.extensions`" + `:
~~~
$ minipack build resolve.extensions=.js,.json,.mjs
~~~`,
	}

	dynamicRequireIssue = &Issue{
		id: DynamicRequireId,
		mdMsg: `
# Dynamic require

Dependencies are discovered at build time, so every ` + "`require`" + ` call must
take a single string literal.

## Things you can try
~~~js
// not bundleable
const mod = require(name);
// bundleable
const mods = { a: require("./a"), b: require("./b") };
const mod = mods[name];
~~~`,
	}

	syntaxErrorIssue = &Issue{
		id: SyntaxErrorId,
		mdMsg: `
# Syntax error

A module could not be parsed after its transforms ran.

## Things you can try
- Check the reported line in the source file
- Sources using ` + "`import`" + `, JSX or TypeScript need a rule with the ` + "`esbuild`" + ` transform:
~~~cue
module: rules: [{test: "\\.(js|ts|jsx|tsx)$", use: ["esbuild"]}]
~~~`,
	}

	transformFailedIssue = &Issue{
		id: TransformFailedId,
		mdMsg: `
# Transform failed

A transform listed in ` + "`module.rules`" + ` returned an error.

## Things you can try
- Transforms run right to left: the last name in ` + "`use`" + ` sees the raw file
- ` + "`sh:`" + ` transforms read the source on stdin and must print the result;
  a non-zero exit status fails the build
- Run the build with ` + "`--verbose`" + ` to see the full error chain`,
	}

	assetWriteFailedIssue = &Issue{
		id: AssetWriteFailedId,
		mdMsg: `
# Output could not be written

The bundles were generated but the output directory is not writable.

## Things you can try
- Check the permissions of ` + "`output.path`" + `
- Choose another output directory:
~~~
$ minipack build output.path=/tmp/dist
~~~`,
	}

	watchFailedIssue = &Issue{
		id: WatchFailedId,
		mdMsg: `
# Watching stopped

The file watcher hit an unrecoverable error. On Linux this usually means the
inotify limits are exhausted.

## Things you can try
~~~
$ sysctl fs.inotify.max_user_watches
$ sudo sysctl -w fs.inotify.max_user_watches=524288
~~~
- Ignore large directories with ` + "`watch.ignore`",
		extLinks: []HttpLink{"https://man7.org/linux/man-pages/man7/inotify.7.html"},
	}

	scriptFailedIssue = &Issue{
		id: ScriptFailedId,
		mdMsg: `
# Bundle threw an error

The bundle ran in the embedded JavaScript engine and threw.

## Things you can try
- ` + "`Cannot find module`" + ` means the module was not part of the chunk;
  rebuild after changing requires
- The embedded engine has no Node.js APIs besides ` + "`console`",
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id(): configLoadFailedIssue,
		entryNotFoundIssue.Id():    entryNotFoundIssue,
		moduleNotFoundIssue.Id():   moduleNotFoundIssue,
		dynamicRequireIssue.Id():   dynamicRequireIssue,
		syntaxErrorIssue.Id():      syntaxErrorIssue,
		transformFailedIssue.Id():  transformFailedIssue,
		assetWriteFailedIssue.Id(): assetWriteFailedIssue,
		watchFailedIssue.Id():      watchFailedIssue,
		scriptFailedIssue.Id():     scriptFailedIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
