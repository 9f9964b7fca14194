package bildsok

import (
	"reflect"
	"testing"
)

func TestParseNormal(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        Fields
	}{
		{
			name:        "sunset scenario",
			description: "主要内容：海边日落\n对象：太阳 海浪\n颜色：橙色",
			want: Fields{
				KeySummary: "海边日落",
				KeyObjects: "太阳 海浪",
				KeyColors:  "橙色",
			},
		},
		{
			name: "all labels",
			description: "主要内容：城市夜景\n对象：高楼 霓虹灯\n场景：市中心\n" +
				"颜色：蓝色 紫色\n风格：现代\n文字：欢迎光临\n情感：热闹",
			want: Fields{
				KeySummary: "城市夜景",
				KeyObjects: "高楼 霓虹灯",
				KeyScene:   "市中心",
				KeyColors:  "蓝色 紫色",
				KeyStyle:   "现代",
				KeyText:    "欢迎光临",
				KeyEmotion: "热闹",
			},
		},
		{
			name:        "value is trimmed",
			description: "主要内容：  山间小路  ",
			want:        Fields{KeySummary: "山间小路"},
		},
		{
			name:        "repeated label overwrites",
			description: "场景：公园\n场景：湖边",
			want:        Fields{KeyScene: "湖边"},
		},
		{
			name:        "unmatched and blank lines dropped",
			description: "这是一段自由文本\n\n对象：猫\n备注：忽略我",
			want:        Fields{KeyObjects: "猫"},
		},
		{
			name:        "screenshot labels are not normal labels",
			description: "文字内容：登录 注册\n应用信息：微信",
			want:        Fields{},
		},
		{
			name:        "empty input",
			description: "",
			want:        Fields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.description, ModeNormal)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseScreenshot(t *testing.T) {
	description := "主要内容：聊天界面截图\n文字内容：你好 明天见\n应用信息：微信\n" +
		"界面元素：输入框 发送按钮\n功能区域：聊天列表\n主题色彩：绿色 白色"

	want := Fields{
		KeySummary:       "聊天界面截图",
		KeyTextContent:   "你好 明天见",
		KeyAppInfo:       "微信",
		KeyUIElements:    "输入框 发送按钮",
		KeyFunctionAreas: "聊天列表",
		KeyColors:        "绿色 白色",
	}

	got := Parse(description, ModeScreenshot)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %v, want %v", got, want)
	}
}

func TestParseKeysAreKnown(t *testing.T) {
	for mode, spec := range modeSpecs {
		for _, rule := range spec.labels {
			if !knownFieldKeys[rule.key] {
				t.Errorf("mode %s label %q maps to unknown key %q", mode, rule.label, rule.key)
			}
		}
	}
}
