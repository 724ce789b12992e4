package login

import (
	"errors"
	"fmt"
)

// ErrInvalidQuestion is returned for a question id outside the forum's table.
var ErrInvalidQuestion = errors.New("login: invalid security question")

// Question is a forum security question.
type Question uint8

const (
	QuestionUnset Question = iota
	QuestionMotherName
	QuestionGrandfatherName
	QuestionFatherBirthCity
	QuestionTeacherName
	QuestionComputerModel
	QuestionFavouriteRestaurant
	QuestionLicenseLastFour
)

// questions maps each question to the id the forum posts and its label.
var questions = []struct {
	q     Question
	id    int
	label string
}{
	{QuestionUnset, 0, "未设置"},
	{QuestionMotherName, 1, "母亲的名字"},
	{QuestionGrandfatherName, 2, "爷爷的名字"},
	{QuestionFatherBirthCity, 3, "父亲出生的城市"},
	{QuestionTeacherName, 4, "您其中一位老师的名字"},
	{QuestionComputerModel, 5, "您个人计算机的型号"},
	{QuestionFavouriteRestaurant, 6, "您最喜欢的餐馆名称"},
	{QuestionLicenseLastFour, 7, "驾驶执照最后四位数字"},
}

// QuestionFromID converts a forum question id.
func QuestionFromID(id int) (Question, error) {
	for _, e := range questions {
		if e.id == id {
			return e.q, nil
		}
	}
	return QuestionUnset, fmt.Errorf("%w: %d", ErrInvalidQuestion, id)
}

// ID returns the id posted to the forum.
func (q Question) ID() int {
	for _, e := range questions {
		if e.q == q {
			return e.id
		}
	}
	return 0
}

func (q Question) String() string {
	for _, e := range questions {
		if e.q == q {
			return e.label
		}
	}
	return fmt.Sprintf("Question(%d)", uint8(q))
}

// Valid reports whether q is in the table.
func (q Question) Valid() bool {
	_, err := QuestionFromID(int(q))
	return err == nil
}

// QuestionAnswerPair is the optional forum security question.
type QuestionAnswerPair struct {
	Question Question
	Answer   string
}
