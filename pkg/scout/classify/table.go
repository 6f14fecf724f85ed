package classify

// Kind is a (category, language) pair.
type Kind struct {
	Category string
	Language string
}

// Categories whose content is hashed and sniffed for an encoding.
const (
	Code     = "code"
	Style    = "style"
	Markup   = "markup"
	Template = "template"
	Config   = "config"
	Docs     = "docs"
	Database = "database"
	Test     = "test"
	Build    = "build"
	Unknown  = "unknown"
)

// specialNames are matched against the full file name, and against the
// upper-cased stem (so README.md and readme.txt both resolve to readme).
var specialNames = map[string]Kind{
	"README":          {Docs, "readme"},
	"LICENSE":         {Docs, "license"},
	"CHANGELOG":       {Docs, "changelog"},
	"CONTRIBUTING":    {Docs, "contributing"},
	"CODE_OF_CONDUCT": {Docs, "code_of_conduct"},
	"SECURITY":        {Docs, "security"},

	".gitignore":        {Config, "gitignore"},
	".gitattributes":    {Config, "git"},
	".editorconfig":     {Config, "editorconfig"},
	".eslintrc":         {Config, "eslint"},
	".prettierrc":       {Config, "prettier"},
	".babelrc":          {Config, "babel"},
	"tsconfig.json":     {Config, "typescript"},
	"webpack.config.js": {Config, "webpack"},
	"rollup.config.js":  {Config, "rollup"},
	"vite.config.js":    {Config, "vite"},
	"next.config.js":    {Config, "nextjs"},
	"nuxt.config.js":    {Config, "nuxtjs"},
	"gatsby-config.js":  {Config, "gatsby"},
}

// fileNames are exact build and package manifest names.
var fileNames = map[string]Kind{
	"Makefile":         {Build, "makefile"},
	"CMakeLists.txt":   {Build, "cmake"},
	"Dockerfile":       {Build, "dockerfile"},
	"pom.xml":          {Build, "maven"},
	"build.xml":        {Build, "ant"},
	"package.json":     {Build, "npm"},
	"composer.json":    {Build, "composer"},
	"Cargo.toml":       {Build, "cargo"},
	"setup.py":         {Build, "python"},
	"requirements.txt": {Build, "python"},
	"Pipfile":          {Build, "python"},
	"pyproject.toml":   {Build, "python"},
	"go.mod":           {Build, "gomod"},
	".env":             {Config, "env"},
	".dockerignore":    {Build, "docker"},
}

// extensions maps a lowercase extension, dot included, to its kind.
var extensions = map[string]Kind{
	".py":    {Code, "python"},
	".js":    {Code, "javascript"},
	".ts":    {Code, "typescript"},
	".java":  {Code, "java"},
	".cpp":   {Code, "cpp"},
	".c":     {Code, "c"},
	".h":     {Code, "c"},
	".cs":    {Code, "csharp"},
	".php":   {Code, "php"},
	".rb":    {Code, "ruby"},
	".go":    {Code, "go"},
	".rs":    {Code, "rust"},
	".swift": {Code, "swift"},
	".kt":    {Code, "kotlin"},
	".scala": {Code, "scala"},
	".clj":   {Code, "clojure"},
	".hs":    {Code, "haskell"},
	".ml":    {Code, "ocaml"},
	".fs":    {Code, "fsharp"},
	".elm":   {Code, "elm"},
	".dart":  {Code, "dart"},
	".lua":   {Code, "lua"},
	".r":     {Code, "r"},
	".m":     {Code, "matlab"},
	".pl":    {Code, "perl"},
	".sh":    {Code, "shell"},
	".bash":  {Code, "shell"},
	".zsh":   {Code, "shell"},
	".fish":  {Code, "shell"},
	".ps1":   {Code, "powershell"},
	".bat":   {Code, "batch"},
	".cmd":   {Code, "batch"},

	".css":  {Style, "css"},
	".scss": {Style, "scss"},
	".sass": {Style, "sass"},
	".less": {Style, "less"},
	".styl": {Style, "stylus"},

	".html":       {Markup, "html"},
	".htm":        {Markup, "html"},
	".xml":        {Markup, "xml"},
	".svg":        {Markup, "svg"},
	".jsx":        {Markup, "jsx"},
	".tsx":        {Markup, "tsx"},
	".vue":        {Markup, "vue"},
	".svelte":     {Markup, "svelte"},
	".handlebars": {Template, "handlebars"},
	".hbs":        {Template, "handlebars"},
	".mustache":   {Template, "mustache"},
	".twig":       {Template, "twig"},
	".jinja":      {Template, "jinja"},
	".j2":         {Template, "jinja"},

	".json":       {Config, "json"},
	".yaml":       {Config, "yaml"},
	".yml":        {Config, "yaml"},
	".toml":       {Config, "toml"},
	".ini":        {Config, "ini"},
	".cfg":        {Config, "ini"},
	".conf":       {Config, "conf"},
	".properties": {Config, "properties"},
	".plist":      {Config, "plist"},

	".md":   {Docs, "markdown"},
	".rst":  {Docs, "restructuredtext"},
	".txt":  {Docs, "text"},
	".adoc": {Docs, "asciidoc"},
	".org":  {Docs, "org"},
	".tex":  {Docs, "latex"},

	".sql":     {Database, "sql"},
	".graphql": {Database, "graphql"},
	".gql":     {Database, "graphql"},

	".dockerfile": {Build, "dockerfile"},
	".gradle":     {Build, "gradle"},
}

// testMarkers identify test files by name, independent of the extension.
var testMarkers = []string{".test.", ".spec.", "_test.", "_spec."}

// textLike is the set of categories whose content is hashed.
var textLike = map[string]bool{
	Code:     true,
	Config:   true,
	Docs:     true,
	Markup:   true,
	Style:    true,
	Template: true,
}
