package webutil

import (
	"errors"
	"log"
	"reflect"
	"strings"

	"go_5_course_keep/internal/model"

	"github.com/go-playground/locales/ja"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	ja_translations "github.com/go-playground/validator/v10/translations/ja"
)

// Validator はアプリケーション全体で共有されるバリデータインスタンスです。
var Validator *validator.Validate

// Trans はエラーメッセージを翻訳するためのトランスレータです。
var Trans ut.Translator

var fieldNameTranslations = map[string]string{
	"title":             "タイトル",
	"description":       "説明",
	"estimated_minutes": "所要時間",
	"type":              "種別",
	"status":            "ステータス",
	"index":             "位置",
	"tier":              "階層",
	"student_id":        "受講者ID",
	"max_score":         "満点",
	"score":             "得点",
}

func init() {
	Validator = validator.New()

	// JSONタグからフィールド名を取得するように設定
	Validator.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	japanese := ja.New()
	uni := ut.New(japanese, japanese)
	var found bool
	Trans, found = uni.GetTranslator("ja")
	if !found {
		log.Fatal("translator not found")
	}

	if err := ja_translations.RegisterDefaultTranslations(Validator, Trans); err != nil {
		log.Fatal(err)
	}

	registerTranslation("required", "{0}は必須項目です。")
	registerTranslation("required_without", "{0}は必須項目です。")
	registerTranslation("oneof", "{0}は{1}のいずれかを指定してください。")
	registerTranslation("max", "{0}は{1}以下で入力してください。")
	registerTranslation("min", "{0}は{1}以上で入力してください。")
	registerTranslation("gte", "{0}は{1}以上で入力してください。")
}

// registerTranslation はフィールド名を日本語に置き換えたメッセージを登録します。
func registerTranslation(tag, msg string) {
	Validator.RegisterTranslation(tag, Trans, func(ut ut.Translator) error {
		return ut.Add(tag, msg, true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		fieldName := fe.Field()
		translatedFieldName, ok := fieldNameTranslations[fieldName]
		if !ok {
			translatedFieldName = fieldName
		}
		t, _ := ut.T(tag, translatedFieldName, strings.ReplaceAll(fe.Param(), " ", ", "))
		return t
	})
}

// ValidateStruct はバリデーションを行い、失敗時は最初のエラーを翻訳した AppError を返します。
func ValidateStruct(s interface{}) error {
	err := Validator.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		firstErr := validationErrors[0]
		return model.NewAppError(
			"VALIDATION_ERROR",
			firstErr.Translate(Trans),
			firstErr.Field(),
			model.ErrInvalidInput,
		)
	}
	return err
}
