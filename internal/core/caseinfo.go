package core

import (
	"fmt"

	"github.com/mazai-xiangji/TCMD-Bench/pkg"
)

// Info-block builders. Each agent sees a different slice of the case: the
// patient knows their own profile, the assistant holds the examination data,
// the expert sees everything including the ground truth. Label wording is
// fixed by the prompt templates.

func patientFullInfo(c pkg.Case) string {
	return fmt.Sprintf("患者个人信息：%s\n问诊信息：%s",
		c.Section(pkg.KeyPatientInfo), c.Section(pkg.KeyConsultInfo))
}

func assistantFullInfo(c pkg.Case) string {
	return fmt.Sprintf("助理所掌握的患者信息：%s\n其他信息：%s",
		c.Section(pkg.KeyConsultInfo), c.Section(pkg.KeyOtherInfo))
}

func expertFullInfo(c pkg.Case) string {
	return fmt.Sprintf("患者个人信息：%s\n问诊信息：%s\n其余信息：%s\n诊断结果：%s\n诊断依据：\n%s",
		c.Section(pkg.KeyPatientInfo),
		c.Section(pkg.KeyConsultInfo),
		c.Section(pkg.KeyOtherInfo),
		c.Section(pkg.KeyDiagnosis),
		c.Section(pkg.KeyDiagnosisBasis))
}

// oneStepDoctorInfo is the full anamnesis handed to the doctor model in
// one-step mode, where no dialogue gathers it incrementally.
func oneStepDoctorInfo(c pkg.Case) string {
	return fmt.Sprintf("患者个人信息：%s\n问诊信息：%s\n其他信息：%s",
		c.Section(pkg.KeyPatientInfo), c.Section(pkg.KeyConsultInfo), c.Section(pkg.KeyOtherInfo))
}
