package bildsok

// Mode selects the label schema used to interpret a vision description.
type Mode int

const (
	// ModeNormal is the photographic schema (objects, scene, colors, ...).
	ModeNormal Mode = iota
	// ModeScreenshot is optimized for on-screen text and application UI.
	ModeScreenshot
)

func (m Mode) String() string {
	if m == ModeScreenshot {
		return "screenshot"
	}
	return "normal"
}

// Semantic keys for parsed description fields.
const (
	KeySummary       = "summary"
	KeyObjects       = "objects"
	KeyScene         = "scene"
	KeyColors        = "colors"
	KeyStyle         = "style"
	KeyText          = "text"
	KeyEmotion       = "emotion"
	KeyTextContent   = "text_content"
	KeyAppInfo       = "app_info"
	KeyUIElements    = "ui_elements"
	KeyFunctionAreas = "function_areas"
)

// knownFieldKeys is the fixed key set a label table may map to.
var knownFieldKeys = map[string]bool{
	KeySummary:       true,
	KeyObjects:       true,
	KeyScene:         true,
	KeyColors:        true,
	KeyStyle:         true,
	KeyText:          true,
	KeyEmotion:       true,
	KeyTextContent:   true,
	KeyAppInfo:       true,
	KeyUIElements:    true,
	KeyFunctionAreas: true,
}

// noTextMarker is what the vision model emits for images without text.
const noTextMarker = "无"

type splitKind int

const (
	// splitWords tokenizes a label value on whitespace only.
	splitWords splitKind = iota
	// splitPhrases first turns full-width comma/period into spaces.
	splitPhrases
)

// labelRule maps one description label to a semantic key and describes how
// its value is tokenized for keyword extraction.
type labelRule struct {
	label       string
	key         string
	split       splitKind
	minTokenLen int
	// skipLiteral disables token extraction when the trimmed value equals it.
	skipLiteral string
}

// modeSpec holds everything that differs between modes, as data.
type modeSpec struct {
	labels        []labelRule
	minKeywordLen int
	maxKeywords   int
	fallbackMax   int
	prompt        string
}

var modeSpecs = map[Mode]modeSpec{
	ModeNormal: {
		labels: []labelRule{
			{label: "主要内容：", key: KeySummary, split: splitPhrases, minTokenLen: 2},
			{label: "对象：", key: KeyObjects, split: splitWords, minTokenLen: 1},
			{label: "场景：", key: KeyScene, split: splitWords, minTokenLen: 1},
			{label: "颜色：", key: KeyColors, split: splitWords, minTokenLen: 1},
			{label: "风格：", key: KeyStyle, split: splitWords, minTokenLen: 1},
			{label: "文字：", key: KeyText, split: splitPhrases, minTokenLen: 2, skipLiteral: noTextMarker},
			{label: "情感：", key: KeyEmotion, split: splitWords, minTokenLen: 1},
		},
		minKeywordLen: 2,
		maxKeywords:   15,
		fallbackMax:   10,
		prompt:        normalPrompt,
	},
	ModeScreenshot: {
		labels: []labelRule{
			{label: "主要内容：", key: KeySummary, split: splitPhrases, minTokenLen: 2},
			{label: "文字内容：", key: KeyTextContent, split: splitPhrases, minTokenLen: 1},
			{label: "应用信息：", key: KeyAppInfo, split: splitWords, minTokenLen: 1},
			{label: "界面元素：", key: KeyUIElements, split: splitWords, minTokenLen: 1},
			{label: "功能区域：", key: KeyFunctionAreas, split: splitWords, minTokenLen: 1},
			{label: "主题色彩：", key: KeyColors, split: splitWords, minTokenLen: 1},
		},
		minKeywordLen: 1,
		maxKeywords:   25,
		fallbackMax:   20,
		prompt:        screenshotPrompt,
	},
}

func (m Mode) spec() modeSpec {
	return modeSpecs[m]
}

var normalPrompt = `分析这张图片并生成搜索友好的描述。请按以下格式输出：

主要内容：[简短描述主体内容]
对象：[列出具体的物体、人物等，用空格分隔]
场景：[描述环境场所]
颜色：[主要颜色]
风格：[如现代、复古、卡通等]
文字：[如有文字内容则列出]
情感：[如快乐、宁静、热闹等]

要求：
1. 每个分类用简洁的关键词，避免完整句子
2. 优先使用常用搜索词汇
3. 用中文输出
4. 如某类别无内容可省略

示例：
主要内容：海边日落风景照
对象：太阳 海浪 沙滩 椰子树 情侣
场景：海滩 黄昏
颜色：橙色 金色 蓝色
风格：自然风光
情感：浪漫 宁静`

var screenshotPrompt = `这是一张屏幕截图。请识别其中的所有文字和界面内容，按以下格式输出：

主要内容：[简短描述截图展示的内容]
文字内容：[列出截图中所有可见的文字，用空格分隔]
应用信息：[应用或网站名称]
界面元素：[按钮、菜单、输入框等界面元素，用空格分隔]
功能区域：[导航栏、侧边栏、正文等区域，用空格分隔]
主题色彩：[界面主要颜色]

要求：
1. 文字内容尽量完整，这是搜索的关键
2. 用中文输出（界面原文保留原语言）
3. 如某类别无内容可省略`
