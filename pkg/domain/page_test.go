package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPage_Transitions(t *testing.T) {
	page := NewPage("<b>もりのくまさん</b>", "data:image/gif;base64,xxxx", "a bear in the forest")

	t.Run("初期状態は pending で履歴に初期プロンプトを持つのだ", func(t *testing.T) {
		if page.ImageStatus != ImagePending {
			t.Errorf("期待値 pending, 実際の値 %s", page.ImageStatus)
		}
		if page.CurrentPrompt() != "a bear in the forest" {
			t.Errorf("現在プロンプトが違うのだ: %s", page.CurrentPrompt())
		}
	})

	t.Run("generating を経て done へ遷移できること", func(t *testing.T) {
		busy := page.WithGenerating()
		if busy.ImageStatus != ImageGenerating {
			t.Fatalf("期待値 generating, 実際の値 %s", busy.ImageStatus)
		}

		done, err := busy.WithImageDone("data:image/png;base64,yyyy", "a bear by the river")
		if err != nil {
			t.Fatalf("done 遷移でエラーが発生しました: %v", err)
		}
		if done.ImageStatus != ImageDone || done.ImageURL != "data:image/png;base64,yyyy" {
			t.Errorf("done 遷移後の状態が不正なのだ: %+v", done)
		}
		if done.CurrentPrompt() != "a bear by the river" {
			t.Errorf("履歴末尾が追記プロンプトに一致しません: %s", done.CurrentPrompt())
		}
	})

	t.Run("画像なしの done 遷移は拒否されること", func(t *testing.T) {
		_, err := page.WithGenerating().WithImageDone("", "")
		if err == nil {
			t.Error("画像なしの done 遷移でエラーが発生しませんでした")
		}
	})

	t.Run("遷移を重ねても履歴の長さは減らないこと", func(t *testing.T) {
		current := page
		lengths := []int{len(current.PromptHistory)}

		current = current.WithGenerating()
		lengths = append(lengths, len(current.PromptHistory))

		done, _ := current.WithImageDone("data:image/png;base64,zzz", "second prompt")
		lengths = append(lengths, len(done.PromptHistory))

		failed := done.WithImageError("だめだったのだ")
		lengths = append(lengths, len(failed.PromptHistory))

		for i := 1; i < len(lengths); i++ {
			if lengths[i] < lengths[i-1] {
				t.Fatalf("履歴が縮んでいるのだ: %v", lengths)
			}
		}
	})

	t.Run("キャンセルすると pending に戻りメモが残ること", func(t *testing.T) {
		cancelled := page.WithGenerating().WithCancelled("ユーザーによって中断されました")
		if cancelled.ImageStatus != ImagePending {
			t.Errorf("期待値 pending, 実際の値 %s", cancelled.ImageStatus)
		}
		if cancelled.ImageNote == "" {
			t.Error("中断メモが残っていないのだ")
		}
	})
}

func TestPage_CloneIsDeep(t *testing.T) {
	style := TextStyle{FontFamily: "Georgia, serif", FontSize: "14pt", TextTransform: TransformNone}
	page := NewPage("text", "img", "prompt")
	page.TextStyle = &style

	copied := page.Clone()
	copied.PromptHistory[0] = "mutated"
	copied.TextStyle.FontSize = "30pt"

	if page.PromptHistory[0] != "prompt" {
		t.Error("履歴のコピーが浅いのだ")
	}
	if page.TextStyle.FontSize != "14pt" {
		t.Error("テキストスタイルのコピーが浅いのだ")
	}
}

func TestPage_JSON(t *testing.T) {
	t.Run("永続化フォーマットのキー名で往復できること", func(t *testing.T) {
		page := Page{
			Text:          "<p>C'era una volta</p>",
			ImageURL:      "data:image/png;base64,abc",
			PromptHistory: []string{"first", "second"},
			ImageStatus:   ImageDone,
			TextAlign:     AlignCenter,
		}

		data, err := json.Marshal(page)
		if err != nil {
			t.Fatalf("Marshal失敗なのだ: %v", err)
		}

		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("Unmarshal失敗なのだ: %v", err)
		}
		for _, key := range []string{"text", "imageUrl", "imagePromptHistory", "imageStatus", "textAlign"} {
			if _, ok := raw[key]; !ok {
				t.Errorf("キー %q が出力に含まれていないのだ", key)
			}
		}

		var decoded Page
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("Unmarshal失敗なのだ: %v", err)
		}
		if !reflect.DeepEqual(page, decoded) {
			t.Errorf("変換前後でデータが一致しないのだ。期待: %+v, 実際: %+v", page, decoded)
		}
	})
}

func TestProject_ReplacePageAndTitle(t *testing.T) {
	project := &Project{
		Pages: []Page{
			NewPage("<h1>Il Drago Gentile</h1>", "img", "cover prompt"),
			NewPage("pagina due", "img", "page prompt"),
		},
	}

	if project.Title() != "Il Drago Gentile" {
		t.Errorf("タイトル抽出が違うのだ: %q", project.Title())
	}

	updated, _ := project.Pages[1].WithGenerating().WithImageDone("data:image/png;base64,new", "")
	project.ReplacePage(1, updated)

	if project.Pages[1].ImageStatus != ImageDone {
		t.Error("ページ差し替えが反映されていないのだ")
	}

	// 範囲外インデックスは無視されること
	project.ReplacePage(99, updated)
}

func TestProject_EffectiveTextStyle(t *testing.T) {
	global := TextStyle{FontFamily: "Georgia, serif", FontSize: "12pt", TextTransform: TransformNone}
	local := TextStyle{FontFamily: "Comic Sans MS", FontSize: "18pt", TextTransform: TransformUppercase}

	project := &Project{
		PromptData: PromptData{TextStyle: global},
		Pages:      []Page{NewPage("a", "i", "p"), NewPage("b", "i", "p")},
	}
	project.Pages[1].TextStyle = &local

	if got := project.EffectiveTextStyle(0); got != global {
		t.Errorf("全体スタイルへのフォールバックが効いていないのだ: %+v", got)
	}
	if got := project.EffectiveTextStyle(1); got != local {
		t.Errorf("ページ個別スタイルが優先されていないのだ: %+v", got)
	}
}
